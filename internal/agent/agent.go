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

package agent

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"leanagent/internal/config"
	"leanagent/internal/tools"
	systemprompt "leanagent/system_prompt"
)

// DefaultMaxSteps bounds the number of model turns in one Run.
const DefaultMaxSteps = 50

// Options configures an Agent.
type Options struct {
	Model        string
	Temperature  *float32
	MaxTokens    *int
	MaxSteps     int
	SystemPrompt string
	Logger       zerolog.Logger
}

// Agent drives a tool-calling conversation: it asks the model for a reply,
// runs the tools it requests, feeds the results back and stops once the
// model answers without tool calls.
//
// Thread-safety: the transcript is mutex-protected, but Run calls are meant
// to be sequential; concurrent runs interleave their messages.
type Agent struct {
	client      ChatClient
	registry    *tools.Registry
	model       string
	temperature *float32
	maxTokens   *int
	maxSteps    int
	logger      zerolog.Logger

	mu       sync.Mutex
	messages []openai.ChatCompletionMessage
}

// New creates an agent around client and registry.
func New(client ChatClient, registry *tools.Registry, opts Options) *Agent {
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	var messages []openai.ChatCompletionMessage
	if opts.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.SystemPrompt,
		})
	}

	return &Agent{
		client:      client,
		registry:    registry,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		maxSteps:    maxSteps,
		logger:      opts.Logger,
		messages:    messages,
	}
}

// NewFromConfig creates an agent with an OpenAI-compatible client pointed at
// cfg.APIURL and the embedded lean conversion prompt.
func NewFromConfig(cfg *config.Config, registry *tools.Registry, logger zerolog.Logger) (*Agent, error) {
	prompt, err := systemprompt.Load()
	if err != nil {
		return nil, err
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIURL != "" {
		clientConfig.BaseURL = cfg.APIURL
		clientConfig.HTTPClient = &http.Client{}
	}

	return New(openai.NewClientWithConfig(clientConfig), registry, Options{
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		MaxSteps:     cfg.MaxSteps,
		SystemPrompt: prompt,
		Logger:       logger,
	}), nil
}

// Run sends task as a user message and loops until the model produces a
// reply without tool calls, which is returned. Tool failures are reported
// back to the model as "Error: ..." tool messages; API failures abort the
// run with an *APIError.
func (a *Agent) Run(ctx context.Context, task string) (string, error) {
	logger := a.logger.With().Str("run_id", uuid.NewString()).Logger()
	logger.Info().Str("model", a.model).Int("max_steps", a.maxSteps).Msg("Agent run started")

	a.appendMessage(openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: task,
	})

	for step := 1; step <= a.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		resp, err := a.client.CreateChatCompletion(ctx, a.request())
		if err != nil {
			logger.Error().Err(err).Int("step", step).Msg("Completion failed")
			return "", &APIError{Operation: "create_completion", Err: err}
		}
		if len(resp.Choices) == 0 {
			return "", &APIError{Operation: "create_completion", Err: errNoChoices}
		}

		reply := resp.Choices[0].Message
		a.appendMessage(openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   reply.Content,
			ToolCalls: reply.ToolCalls,
		})

		if len(reply.ToolCalls) == 0 {
			logger.Info().Int("steps", step).Msg("Agent run finished")
			return reply.Content, nil
		}

		for _, call := range reply.ToolCalls {
			logger.Debug().Int("step", step).Str("tool", call.Function.Name).Str("call_id", call.ID).Msg("Tool requested")
			result := a.registry.ExecuteOpenAIToolCall(ctx, call)
			a.appendToolResult(call, result)
		}
	}

	logger.Warn().Int("max_steps", a.maxSteps).Msg("Agent run hit step limit")
	return "", fmt.Errorf("%w after %d steps", ErrStepLimit, a.maxSteps)
}

func (a *Agent) request() openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: a.Transcript(),
		Tools:    a.registry.OpenAITools(),
	}
	if a.temperature != nil {
		req.Temperature = *a.temperature
	}
	if a.maxTokens != nil {
		req.MaxTokens = *a.maxTokens
	}
	return req
}

func (a *Agent) appendMessage(msg openai.ChatCompletionMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, msg)
}

func (a *Agent) appendToolResult(call openai.ToolCall, result *tools.ToolResult) {
	content := result.Result
	if result.Error != nil && content == "" {
		content = fmt.Sprintf("Error: %v", result.Error)
	}

	name := call.Function.Name
	if name == "" {
		name = "unknown_tool"
	}
	a.appendMessage(openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		Content:    content,
		Name:       name,
		ToolCallID: call.ID,
	})
}

// Transcript returns a copy of every message exchanged so far, including
// the system prompt.
func (a *Agent) Transcript() []openai.ChatCompletionMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	msgs := make([]openai.ChatCompletionMessage, len(a.messages))
	copy(msgs, a.messages)
	return msgs
}

// Reset drops the conversation, keeping the system prompt.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.messages) > 0 && a.messages[0].Role == openai.ChatMessageRoleSystem {
		a.messages = a.messages[:1]
		return
	}
	a.messages = nil
}
