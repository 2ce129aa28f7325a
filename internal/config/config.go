// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"leanagent/internal/tools"
)

const (
	defaultModel    = "gemini-2.5-pro"
	defaultAPIURL   = "https://generativelanguage.googleapis.com/v1beta/openai/"
	defaultMaxSteps = 50
)

// Config represents the application configuration
type Config struct {
	APIKey            string            `json:"api_key"`
	APIURL            string            `json:"api_url,omitempty"`
	Model             string            `json:"model"`
	Temperature       *float32          `json:"temperature,omitempty"`
	MaxTokens         *int              `json:"max_tokens,omitempty"`
	MaxSteps          int               `json:"max_steps,omitempty"`
	TaskFile          string            `json:"task_file,omitempty"`
	Shell             string            `json:"shell,omitempty"`
	SearchBackend     string            `json:"search_backend,omitempty"`
	Tools             ToolSettings      `json:"tools,omitempty"`
	ToolLimits        ToolLimits        `json:"tool_limits,omitempty"`
	ToolPathWhitelist []string          `json:"tool_path_whitelist,omitempty"`
	ToolRateLimits    ToolRateLimits    `json:"tool_rate_limits,omitempty"`
	ToolTimeouts      ToolTimeouts      `json:"tool_timeouts,omitempty"`
	ToolOutputFilters ToolOutputFilters `json:"tool_output_filters,omitempty"`
}

// ToolSettings describes tool allow/ask/deny lists.
type ToolSettings struct {
	Allow               []string `json:"allow"`
	Ask                 []string `json:"ask,omitempty"`
	Deny                []string `json:"deny,omitempty"`
	RequireConfirmation []string `json:"require_confirmation,omitempty"`
}

// ToolLimits configures resource limits for tool execution.
type ToolLimits struct {
	MaxFileSizeBytes int64 `json:"max_file_size_bytes,omitempty"`
}

// ToolRateLimits configures tool rate limits and cooldowns.
type ToolRateLimits struct {
	DefaultPerMinute int            `json:"default_per_minute,omitempty"`
	PerTool          map[string]int `json:"per_tool,omitempty"`
	CooldownSeconds  map[string]int `json:"cooldown_seconds,omitempty"`
}

// ToolTimeouts configures tool execution timeouts.
type ToolTimeouts struct {
	DefaultSeconds int            `json:"default_seconds,omitempty"`
	PerToolSeconds map[string]int `json:"per_tool_seconds,omitempty"`
}

// ToolOutputFilters configures output sanitization for tool results.
type ToolOutputFilters struct {
	MaxChars     int  `json:"max_chars,omitempty"`
	StripANSI    bool `json:"strip_ansi,omitempty"`
	StripControl bool `json:"strip_control,omitempty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	defaultTimeouts := tools.DefaultTimeoutConfig()
	perToolSeconds := make(map[string]int, len(defaultTimeouts.PerTool))
	for name, timeout := range defaultTimeouts.PerTool {
		perToolSeconds[name] = int(timeout.Seconds())
	}
	filters := tools.DefaultOutputFilterConfig()

	return &Config{
		Model:         defaultModel,
		APIURL:        defaultAPIURL,
		MaxSteps:      defaultMaxSteps,
		Shell:         "sh",
		SearchBackend: string(tools.SearchBackendAuto),
		ToolLimits: ToolLimits{
			MaxFileSizeBytes: tools.DefaultLimits().MaxFileSizeBytes,
		},
		ToolRateLimits: ToolRateLimits{
			DefaultPerMinute: tools.DefaultRateLimitConfig().DefaultPerMinute,
		},
		ToolTimeouts: ToolTimeouts{
			PerToolSeconds: perToolSeconds,
		},
		ToolOutputFilters: ToolOutputFilters{
			MaxChars:     filters.MaxChars,
			StripANSI:    filters.StripANSI,
			StripControl: filters.StripControl,
		},
	}
}

// LoadConfig loads configuration from a JSON file, applies env overrides, and validates required fields.
func LoadConfig(filepath string) (*Config, error) {
	config := DefaultConfig()

	// A missing file is fine; everything can come from the environment.
	if _, err := os.Stat(filepath); err == nil {
		data, err := os.ReadFile(filepath)
		if err != nil {
			return nil, err
		}
		normalized, err := normalizeConfigJSON(data)
		if err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", filepath, err)
		}
		if err := json.Unmarshal(normalized, config); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(config)

	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.APIURL == "" {
		config.APIURL = defaultAPIURL
	}
	if config.MaxSteps <= 0 {
		config.MaxSteps = defaultMaxSteps
	}

	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required (set api_key in config.json or LEANAGENT_API_KEY/OPENAI_API_KEY/GEMINI_API_KEY)")
	}

	return config, nil
}

// applyEnvOverrides lets the environment win over the config file. The
// first non-empty key variable is used.
func applyEnvOverrides(config *Config) {
	for _, name := range []string{"LEANAGENT_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"} {
		if val := os.Getenv(name); val != "" {
			config.APIKey = val
			break
		}
	}
	for _, name := range []string{"LEANAGENT_API_URL", "OPENAI_API_URL"} {
		if val := os.Getenv(name); val != "" {
			config.APIURL = val
			break
		}
	}
	if val := os.Getenv("LEANAGENT_MODEL"); val != "" {
		config.Model = val
	}
}

// ToolPolicy converts config settings into a tool policy.
func (c *Config) ToolPolicy() tools.Policy {
	ask := append([]string{}, c.Tools.Ask...)
	ask = append(ask, c.Tools.RequireConfirmation...)
	return tools.Policy{
		Allow: append([]string{}, c.Tools.Allow...),
		Ask:   ask,
		Deny:  append([]string{}, c.Tools.Deny...),
	}
}

// ToolLimitsConfig returns tool limits for runtime enforcement.
func (c *Config) ToolLimitsConfig() tools.Limits {
	return tools.Limits{
		MaxFileSizeBytes: c.ToolLimits.MaxFileSizeBytes,
	}
}

// ToolPathWhitelistConfig returns the optional tool base directory whitelist.
func (c *Config) ToolPathWhitelistConfig() []string {
	return append([]string{}, c.ToolPathWhitelist...)
}

// ToolRateLimitsConfig returns rate limiting configuration for tools.
func (c *Config) ToolRateLimitsConfig() tools.RateLimitConfig {
	cooldowns := make(map[string]time.Duration, len(c.ToolRateLimits.CooldownSeconds))
	for name, seconds := range c.ToolRateLimits.CooldownSeconds {
		if seconds <= 0 {
			continue
		}
		cooldowns[name] = time.Duration(seconds) * time.Second
	}
	perTool := make(map[string]int, len(c.ToolRateLimits.PerTool))
	for name, n := range c.ToolRateLimits.PerTool {
		perTool[name] = n
	}

	return tools.RateLimitConfig{
		DefaultPerMinute: c.ToolRateLimits.DefaultPerMinute,
		PerTool:          perTool,
		Cooldowns:        cooldowns,
	}
}

// ToolTimeoutsConfig returns timeout configuration for tools.
func (c *Config) ToolTimeoutsConfig() tools.TimeoutConfig {
	perTool := make(map[string]time.Duration, len(c.ToolTimeouts.PerToolSeconds))
	for name, seconds := range c.ToolTimeouts.PerToolSeconds {
		if seconds <= 0 {
			continue
		}
		perTool[name] = time.Duration(seconds) * time.Second
	}

	var defaultTimeout time.Duration
	if c.ToolTimeouts.DefaultSeconds > 0 {
		defaultTimeout = time.Duration(c.ToolTimeouts.DefaultSeconds) * time.Second
	}

	return tools.TimeoutConfig{
		Default: defaultTimeout,
		PerTool: perTool,
	}
}

// ToolOutputFiltersConfig returns output filter configuration for tools.
func (c *Config) ToolOutputFiltersConfig() tools.OutputFilterConfig {
	return tools.OutputFilterConfig{
		MaxChars:     c.ToolOutputFilters.MaxChars,
		StripANSI:    c.ToolOutputFilters.StripANSI,
		StripControl: c.ToolOutputFilters.StripControl,
	}
}

// ToolOptions assembles registry options from the configuration. Callers
// fill in the logger, approver and shared state.
func (c *Config) ToolOptions() tools.Options {
	opts := tools.DefaultOptions()
	opts.Policy = c.ToolPolicy()
	opts.Limits = c.ToolLimitsConfig()
	opts.PathWhitelist = c.ToolPathWhitelistConfig()
	opts.RateLimits = c.ToolRateLimitsConfig()
	opts.Timeouts = c.ToolTimeoutsConfig()
	opts.OutputFilters = c.ToolOutputFiltersConfig()
	if c.Shell != "" {
		opts.Shell = c.Shell
	}
	if c.SearchBackend != "" {
		opts.SearchBackend = tools.SearchBackend(c.SearchBackend)
	}
	return opts
}

// ValidationWarning represents a non-fatal configuration issue
type ValidationWarning struct {
	Field   string
	Message string
}

// Validate checks the configuration for common issues and returns warnings
func (c *Config) Validate(registry *tools.Registry) []ValidationWarning {
	var warnings []ValidationWarning

	// OpenAI-compatible endpoints expect 0-2
	if c.Temperature != nil {
		temp := *c.Temperature
		if temp < 0 || temp > 2 {
			warnings = append(warnings, ValidationWarning{
				Field:   "temperature",
				Message: fmt.Sprintf("temperature %.2f is outside recommended range [0, 2]", temp),
			})
		}
	}

	if c.MaxTokens != nil {
		tokens := *c.MaxTokens
		if tokens <= 0 {
			warnings = append(warnings, ValidationWarning{
				Field:   "max_tokens",
				Message: fmt.Sprintf("max_tokens %d must be positive", tokens),
			})
		}
		if tokens > 1048576 {
			warnings = append(warnings, ValidationWarning{
				Field:   "max_tokens",
				Message: fmt.Sprintf("max_tokens %d exceeds typical model limits", tokens),
			})
		}
	}

	if c.MaxSteps <= 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "max_steps",
			Message: fmt.Sprintf("max_steps %d should be positive, using default", c.MaxSteps),
		})
	}

	switch tools.SearchBackend(c.SearchBackend) {
	case "", tools.SearchBackendAuto, tools.SearchBackendRipgrep, tools.SearchBackendGrep:
	default:
		warnings = append(warnings, ValidationWarning{
			Field:   "search_backend",
			Message: fmt.Sprintf("search_backend %q is not one of auto, rg, grep", c.SearchBackend),
		})
	}

	if registry != nil {
		registeredTools := make(map[string]bool)
		for _, tool := range registry.GetTools() {
			registeredTools[tool.Name()] = true
		}

		lists := []struct {
			field string
			names []string
		}{
			{"tools.allow", c.Tools.Allow},
			{"tools.ask", c.Tools.Ask},
			{"tools.require_confirmation", c.Tools.RequireConfirmation},
			{"tools.deny", c.Tools.Deny},
		}
		for _, list := range lists {
			for _, toolName := range list.names {
				if !registeredTools[toolName] {
					warnings = append(warnings, ValidationWarning{
						Field:   list.field,
						Message: fmt.Sprintf("tool %q in %s list is not registered", toolName, list.field[len("tools."):]),
					})
				}
			}
		}
	}

	return warnings
}
