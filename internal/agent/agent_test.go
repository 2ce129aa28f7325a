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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"leanagent/internal/config"
	apperrors "leanagent/internal/errors"
	"leanagent/internal/tools"
)

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	opts := tools.DefaultOptions()
	logger := zerolog.Nop()
	opts.Logger = &logger
	registry, err := tools.NewRegistry(opts)
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	return registry
}

func newTestAgent(t *testing.T, client ChatClient, maxSteps int) *Agent {
	t.Helper()
	return New(client, newTestRegistry(t), Options{
		Model:        "test-model",
		MaxSteps:     maxSteps,
		SystemPrompt: "system prompt",
		Logger:       zerolog.Nop(),
	})
}

func TestRunReturnsReplyWithoutTools(t *testing.T) {
	client := &MockChatClient{Responses: []openai.ChatCompletionResponse{textResponse("done")}}
	a := newTestAgent(t, client, 5)

	reply, err := a.Run(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "done" {
		t.Fatalf("expected reply 'done', got %q", reply)
	}
	if len(client.CompletionCalls) != 1 {
		t.Fatalf("expected 1 completion call, got %d", len(client.CompletionCalls))
	}

	req := client.CompletionCalls[0]
	if req.Model != "test-model" {
		t.Fatalf("expected model test-model, got %s", req.Model)
	}
	if len(req.Tools) == 0 {
		t.Fatal("expected tool definitions in request")
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != openai.ChatMessageRoleSystem || req.Messages[1].Content != "hello" {
		t.Fatalf("unexpected request messages: %+v", req.Messages)
	}
}

func TestRunExecutesToolCalls(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ring.md")
	if err := os.WriteFile(path, []byte("theorem\nproof\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	client := &MockChatClient{Responses: []openai.ChatCompletionResponse{
		toolCallResponse(
			toolCall("call-1", "read_file", `{"file_path":"`+path+`","offset":1}`),
			toolCall("call-2", "add_todo", `{"content":"state theorem"}`),
		),
		textResponse("converted"),
	}}
	a := newTestAgent(t, client, 5)

	reply, err := a.Run(context.Background(), "convert")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "converted" {
		t.Fatalf("expected 'converted', got %q", reply)
	}

	msgs := a.Transcript()
	// system, user, assistant(tool calls), tool, tool, assistant
	if len(msgs) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(msgs))
	}
	readMsg := msgs[3]
	if readMsg.Role != openai.ChatMessageRoleTool || readMsg.ToolCallID != "call-1" || readMsg.Name != "read_file" {
		t.Fatalf("unexpected tool message: %+v", readMsg)
	}
	if readMsg.Content != "proof\n" {
		t.Fatalf("expected read_file content 'proof\\n', got %q", readMsg.Content)
	}
	if msgs[4].ToolCallID != "call-2" {
		t.Fatalf("expected second tool result for call-2, got %+v", msgs[4])
	}

	// The follow-up request must carry the tool results.
	if got := len(client.CompletionCalls[1].Messages); got != 5 {
		t.Fatalf("expected 5 messages in second request, got %d", got)
	}
	if items := a.registry.Todos().List(nil); len(items) != 1 || items[0].Content != "state theorem" {
		t.Fatalf("expected todo to be recorded, got %+v", items)
	}
}

func TestRunFeedsToolErrorsBack(t *testing.T) {
	client := &MockChatClient{Responses: []openai.ChatCompletionResponse{
		toolCallResponse(toolCall("call-1", "read_file", `{"file_path":"/definitely/missing.md"}`)),
		toolCallResponse(toolCall("call-2", "no_such_tool", `{}`)),
		textResponse("gave up"),
	}}
	a := newTestAgent(t, client, 5)

	reply, err := a.Run(context.Background(), "convert")
	if err != nil {
		t.Fatalf("tool errors must not abort the run: %v", err)
	}
	if reply != "gave up" {
		t.Fatalf("unexpected reply %q", reply)
	}

	msgs := a.Transcript()
	if !strings.HasPrefix(msgs[3].Content, "Error:") {
		t.Fatalf("expected error tool message, got %q", msgs[3].Content)
	}
	if !strings.Contains(msgs[5].Content, "not found") {
		t.Fatalf("expected unknown tool message, got %q", msgs[5].Content)
	}
}

func TestRunStepLimit(t *testing.T) {
	client := &MockChatClient{Responses: []openai.ChatCompletionResponse{
		toolCallResponse(toolCall("call-1", "list_todos", `{}`)),
	}}
	a := newTestAgent(t, client, 3)

	_, err := a.Run(context.Background(), "loop forever")
	if !errors.Is(err, ErrStepLimit) {
		t.Fatalf("expected ErrStepLimit, got %v", err)
	}
	if len(client.CompletionCalls) != 3 {
		t.Fatalf("expected 3 completion calls, got %d", len(client.CompletionCalls))
	}
}

func TestRunAPIError(t *testing.T) {
	apiErr := errors.New("503 unavailable")
	client := &MockChatClient{
		CreateCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return openai.ChatCompletionResponse{}, apiErr
		},
	}
	a := newTestAgent(t, client, 3)

	_, err := a.Run(context.Background(), "hello")
	var target *APIError
	if !errors.As(err, &target) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if !errors.Is(err, apiErr) {
		t.Fatal("expected APIError to wrap the client error")
	}
	if !errors.Is(err, apperrors.ErrAPI) {
		t.Fatal("expected APIError to match the api sentinel")
	}
}

func TestRunEmptyChoices(t *testing.T) {
	client := &MockChatClient{Responses: []openai.ChatCompletionResponse{{}}}
	a := newTestAgent(t, client, 3)

	_, err := a.Run(context.Background(), "hello")
	if !errors.Is(err, errNoChoices) {
		t.Fatalf("expected errNoChoices, got %v", err)
	}
}

func TestRunCanceledContext(t *testing.T) {
	client := &MockChatClient{}
	a := newTestAgent(t, client, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Run(ctx, "hello"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(client.CompletionCalls) != 0 {
		t.Fatal("expected no completion calls after cancellation")
	}
}

func TestRequestCarriesSamplingOptions(t *testing.T) {
	temp := float32(0.3)
	tokens := 256
	client := &MockChatClient{}
	a := New(client, newTestRegistry(t), Options{
		Model:       "m",
		Temperature: &temp,
		MaxTokens:   &tokens,
		Logger:      zerolog.Nop(),
	})

	if _, err := a.Run(context.Background(), "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := client.CompletionCalls[0]
	if req.Temperature != 0.3 || req.MaxTokens != 256 {
		t.Fatalf("expected temperature/max tokens to be forwarded, got %v/%d", req.Temperature, req.MaxTokens)
	}
	if a.maxSteps != DefaultMaxSteps {
		t.Fatalf("expected default max steps, got %d", a.maxSteps)
	}
	// No system prompt configured, so the user message comes first.
	if req.Messages[0].Role != openai.ChatMessageRoleUser {
		t.Fatalf("expected user message first, got %s", req.Messages[0].Role)
	}
}

func TestTranscriptIsCopyAndResetKeepsSystemPrompt(t *testing.T) {
	a := newTestAgent(t, &MockChatClient{}, 3)
	if _, err := a.Run(context.Background(), "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := a.Transcript()
	msgs[0].Content = "mutated"
	if a.Transcript()[0].Content != "system prompt" {
		t.Fatal("Transcript must return a copy")
	}

	a.Reset()
	msgs = a.Transcript()
	if len(msgs) != 1 || msgs[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("expected only the system prompt after reset, got %+v", msgs)
	}
}

func TestNewFromConfigLoadsPrompt(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.MaxSteps = 7

	a, err := NewFromConfig(cfg, newTestRegistry(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.maxSteps != 7 || a.model != cfg.Model {
		t.Fatalf("unexpected agent settings: steps=%d model=%s", a.maxSteps, a.model)
	}
	msgs := a.Transcript()
	if len(msgs) != 1 || !strings.Contains(msgs[0].Content, "Lean 4") {
		t.Fatalf("expected embedded system prompt, got %+v", msgs)
	}
}
