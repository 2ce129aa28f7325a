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

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	apperrors "leanagent/internal/errors"
)

// Permission describes the policy for a tool.
type Permission struct {
	Allowed             bool
	RequireConfirmation bool
}

// Policy configures which tools may run. An empty Allow list allows every
// tool; Deny wins over Allow; Ask tools need approval before each call.
type Policy struct {
	Allow []string
	Ask   []string
	Deny  []string
}

// DefaultPolicy allows every tool without confirmation.
func DefaultPolicy() Policy {
	return Policy{}
}

func (p Policy) permission(name string) Permission {
	perm := Permission{Allowed: len(p.Allow) == 0}
	if contains(p.Allow, name) {
		perm.Allowed = true
	}
	if contains(p.Ask, name) {
		perm.Allowed = true
		perm.RequireConfirmation = true
	}
	if contains(p.Deny, name) {
		perm.Allowed = false
	}
	return perm
}

func contains(list []string, name string) bool {
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}

// ApprovalFunc asks whether a confirmation-gated tool call may proceed.
type ApprovalFunc func(ctx context.Context, tool string, args map[string]interface{}) (bool, error)

// ExecuteOptions controls how tool execution is handled.
type ExecuteOptions struct {
	// Force bypasses policy checks and confirmation requirements.
	Force bool
}

// Options configures a Registry and the built-in tools it registers.
type Options struct {
	Policy        Policy
	Limits        Limits
	PathWhitelist []string
	RateLimits    RateLimitConfig
	Timeouts      TimeoutConfig
	OutputFilters OutputFilterConfig
	Shell         string
	SearchBackend SearchBackend

	// Todos and Processes may be shared with the host; new ones are
	// created when nil.
	Todos     *TodoList
	Processes *ProcessTable

	Approver ApprovalFunc
	Logger   *zerolog.Logger
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Policy:        DefaultPolicy(),
		Limits:        DefaultLimits(),
		RateLimits:    DefaultRateLimitConfig(),
		Timeouts:      DefaultTimeoutConfig(),
		OutputFilters: DefaultOutputFilterConfig(),
		Shell:         defaultShell,
		SearchBackend: SearchBackendAuto,
	}
}

// Registry holds all available tools with their implementations.
type Registry struct {
	mu          sync.RWMutex
	tools       map[string]Tool
	order       []string
	permissions map[string]Permission
	policy      Policy

	approver ApprovalFunc
	limiter  *toolRateLimiter
	timeouts TimeoutConfig
	filters  OutputFilterConfig
	logger   zerolog.Logger

	todos     *TodoList
	processes *ProcessTable
	runner    *CommandRunner
	searcher  *Searcher
	editor    *FileEditor
	reader    *FileReader
	pathRules PathRules
}

// NewRegistry creates a registry with every built-in tool registered.
func NewRegistry(opts Options) (*Registry, error) {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.Todos == nil {
		opts.Todos = NewTodoList()
	}
	if opts.Processes == nil {
		opts.Processes = NewProcessTable(logger)
	}
	limits := normalizeLimits(opts.Limits)

	r := &Registry{
		tools:       make(map[string]Tool),
		permissions: make(map[string]Permission),
		policy:      opts.Policy,
		approver:    opts.Approver,
		limiter:     newToolRateLimiter(opts.RateLimits),
		timeouts:    opts.Timeouts,
		filters:     normalizeOutputFilterConfig(opts.OutputFilters),
		logger:      logger,
		todos:       opts.Todos,
		processes:   opts.Processes,
		runner:      NewCommandRunner(opts.Shell, opts.Processes, logger),
		searcher:    NewSearcher(opts.SearchBackend, logger),
		editor:      NewFileEditor(limits, logger),
		reader:      NewFileReader(limits, logger),
		pathRules:   PathRules{Whitelist: opts.PathWhitelist},
	}

	if err := registerBuiltInTools(r); err != nil {
		return nil, err
	}
	return r, nil
}

// RegisterTool adds a tool to the registry. Its permission follows the
// registry policy.
func (r *Registry) RegisterTool(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	name := tool.Name()
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("tool name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	r.permissions[name] = r.policy.permission(name)
	return nil
}

// Todos returns the todo list backing the todo tools.
func (r *Registry) Todos() *TodoList {
	return r.todos
}

// Processes returns the table of background commands.
func (r *Registry) Processes() *ProcessTable {
	return r.processes
}

// SetApprover replaces the confirmation callback.
func (r *Registry) SetApprover(approver ApprovalFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approver = approver
}

// GetTools returns all tools in registration order.
func (r *Registry) GetTools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// GetToolNames returns the tool names in registration order.
func (r *Registry) GetToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// OpenAITools returns the allowed tools as OpenAI tool definitions.
func (r *Registry) OpenAITools() []openai.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]openai.Tool, 0, len(r.order))
	for _, name := range r.order {
		if !r.permissions[name].Allowed {
			continue
		}
		tool := r.tools[name]
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return defs
}

// Execute runs the specified tool with given arguments.
func (r *Registry) Execute(ctx context.Context, function string, args map[string]interface{}) *ToolResult {
	return r.ExecuteWithOptions(ctx, function, args, ExecuteOptions{})
}

// ExecuteWithOptions runs the tool using the provided options. Failures are
// reported in ToolResult.Error, with a model-facing message in Result.
func (r *Registry) ExecuteWithOptions(ctx context.Context, function string, args map[string]interface{}, opts ExecuteOptions) *ToolResult {
	result := &ToolResult{Function: function}
	if args == nil {
		args = map[string]interface{}{}
	}

	tool, exists := r.getTool(function)
	if !exists {
		result.Error = fmt.Errorf("%w: %s", ErrToolNotFound, function)
		result.Result = fmt.Sprintf("Error: Tool '%s' not found. Available tools: %v", function, r.GetToolNames())
		return result
	}

	if !opts.Force {
		if err := r.authorize(ctx, function, args); err != nil {
			return r.fail(result, err)
		}
	}

	if err := tool.Validate(args); err != nil {
		return r.fail(result, err)
	}

	if err := r.limiter.Allow(function); err != nil {
		return r.fail(result, err)
	}

	if timeout := r.timeouts.TimeoutForCall(function, args); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := tool.Execute(ctx, args)
	r.logger.Debug().
		Str("tool", function).
		Dur("duration", time.Since(start)).
		Bool("failed", err != nil).
		Msg("Tool executed")
	if err != nil {
		return r.fail(result, err)
	}

	result.Result, result.Truncated = sanitizeToolOutput(r.outputFilters(function), output)
	return result
}

// verbatimOutputTools return file contents, so only truncation applies.
var verbatimOutputTools = map[string]bool{"read_file": true}

func (r *Registry) outputFilters(name string) OutputFilterConfig {
	filters := r.filters
	if verbatimOutputTools[name] {
		filters.StripANSI = false
		filters.StripControl = false
	}
	return filters
}

func (r *Registry) fail(result *ToolResult, err error) *ToolResult {
	if apperrors.CodeOf(err) == "" {
		err = NewToolExecutionError(result.Function, "", err)
	}
	r.logger.Warn().Str("tool", result.Function).Str("code", string(apperrors.CodeOf(err))).Err(err).Msg("Tool call failed")
	result.Error = err
	result.Result, _ = sanitizeToolOutput(r.filters, fmt.Sprintf("Error: %v", err))
	return result
}

// authorize enforces the policy and asks the approver for gated tools.
func (r *Registry) authorize(ctx context.Context, name string, args map[string]interface{}) error {
	perm := r.GetPermission(name)
	if !perm.Allowed {
		return NewPermissionError(name, ErrToolNotAllowed)
	}
	if !perm.RequireConfirmation {
		return nil
	}

	r.mu.RLock()
	approver := r.approver
	r.mu.RUnlock()
	if approver == nil {
		return NewPermissionError(name, ErrToolRequiresConfirmation)
	}
	ok, err := approver(ctx, name, args)
	if err != nil {
		return NewPermissionError(name, err)
	}
	if !ok {
		return NewPermissionError(name, ErrToolDeniedByUser)
	}
	return nil
}

// ExecuteOpenAIToolCall executes an OpenAI tool call payload.
func (r *Registry) ExecuteOpenAIToolCall(ctx context.Context, call openai.ToolCall) *ToolResult {
	return r.ExecuteOpenAIToolCallWithOptions(ctx, call, ExecuteOptions{})
}

// ExecuteOpenAIToolCallWithOptions executes a tool call with execution options.
func (r *Registry) ExecuteOpenAIToolCallWithOptions(ctx context.Context, call openai.ToolCall, opts ExecuteOptions) *ToolResult {
	name := call.Function.Name
	if name == "" {
		return r.fail(&ToolResult{Function: "unknown_tool"}, invalidArgumentf("tool call missing function name"))
	}
	args, err := parseToolArgs(call.Function.Arguments)
	if err != nil {
		return r.fail(&ToolResult{Function: name}, apperrors.Wrap(apperrors.CodeInvalidArguments, "invalid tool arguments", err))
	}
	return r.ExecuteWithOptions(ctx, name, args, opts)
}

// AllowTool marks a tool as allowed and sets its confirmation requirement.
func (r *Registry) AllowTool(name string, requireConfirmation bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.permissions[name] = Permission{Allowed: true, RequireConfirmation: requireConfirmation}
}

// SetAllowed toggles whether a tool is allowed.
func (r *Registry) SetAllowed(name string, allowed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	perm := r.permissions[name]
	perm.Allowed = allowed
	r.permissions[name] = perm
}

// GetPermission returns the current permission entry for a tool.
func (r *Registry) GetPermission(name string) Permission {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if perm, ok := r.permissions[name]; ok {
		return perm
	}
	return Permission{}
}

func (r *Registry) getTool(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// encodeJSON renders a tool result value for the model.
func encodeJSON(v interface{}) (string, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
