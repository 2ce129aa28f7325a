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

package tools

import "time"

// TimeoutConfig configures per-tool execution timeouts. A zero timeout means
// the tool runs until it finishes or the caller's context ends.
type TimeoutConfig struct {
	Default time.Duration
	PerTool map[string]time.Duration
}

// DefaultTimeoutConfig returns the default timeout configuration. Shell
// commands are only bounded when the model asks for it.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		PerTool: map[string]time.Duration{
			"grep": 60 * time.Second,
		},
	}
}

// TimeoutForTool returns the configured timeout for a tool, or zero.
func (t TimeoutConfig) TimeoutForTool(name string) time.Duration {
	if timeout, ok := t.PerTool[name]; ok {
		return timeout
	}
	return t.Default
}

// TimeoutForCall returns the timeout the registry puts around one call. A
// call that sets its own positive "timeout" argument, or that starts a
// background process, is left to the tool.
func (t TimeoutConfig) TimeoutForCall(name string, args map[string]interface{}) time.Duration {
	if bg, _ := args["run_in_bg"].(bool); bg {
		return 0
	}
	if seconds, ok := args["timeout"].(float64); ok && seconds > 0 {
		return 0
	}
	return t.TimeoutForTool(name)
}
