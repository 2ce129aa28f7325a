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

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"leanagent/internal/agent"
	"leanagent/internal/config"
)

// scriptedClient replays responses in order and then keeps answering "ok".
type scriptedClient struct {
	mu        sync.Mutex
	responses []openai.ChatCompletionResponse
	err       error
	requests  []openai.ChatCompletionRequest
}

func (c *scriptedClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.err != nil {
		return openai.ChatCompletionResponse{}, c.err
	}
	if len(c.responses) == 0 {
		return reply("ok"), nil
	}
	next := c.responses[0]
	c.responses = c.responses[1:]
	return next, nil
}

func reply(content string, calls ...openai.ToolCall) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:      openai.ChatMessageRoleAssistant,
				Content:   content,
				ToolCalls: calls,
			},
		}},
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.Model = "test-model"
	cfg.MaxSteps = 5
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, client agent.ChatClient) (*app, *bytes.Buffer) {
	t.Helper()
	a, err := newApp(cfg, zerolog.Nop(), nil, client)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	var out bytes.Buffer
	a.out = &out
	t.Cleanup(a.Close)
	return a, &out
}

func writeMarkdown(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ring.md")
	if err := os.WriteFile(path, []byte("# Ring\n\nTheorem: 0 * a = 0.\n"), 0o644); err != nil {
		t.Fatalf("write markdown: %v", err)
	}
	return path
}

func TestResolveTaskPath(t *testing.T) {
	path := writeMarkdown(t)
	cfg := testConfig()

	got, err := resolveTaskPath([]string{path}, cfg)
	if err != nil || got != path {
		t.Fatalf("expected %s, got %s (%v)", path, got, err)
	}

	cfg.TaskFile = path
	got, err = resolveTaskPath(nil, cfg)
	if err != nil || got != path {
		t.Fatalf("expected task_file fallback %s, got %s (%v)", path, got, err)
	}

	cfg.TaskFile = ""
	if _, err := resolveTaskPath(nil, cfg); !errors.Is(err, errNoTaskFile) {
		t.Fatalf("expected errNoTaskFile, got %v", err)
	}
	if _, err := resolveTaskPath([]string{filepath.Join(t.TempDir(), "none.md")}, cfg); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if _, err := resolveTaskPath([]string{t.TempDir()}, cfg); err == nil {
		t.Fatal("expected error for directory task path")
	}
}

func TestResolveTaskPathMakesAbsolute(t *testing.T) {
	path := writeMarkdown(t)
	t.Chdir(filepath.Dir(path))

	got, err := resolveTaskPath([]string{"ring.md"}, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(got) || filepath.Base(got) != "ring.md" {
		t.Fatalf("expected absolute path to ring.md, got %s", got)
	}
}

func TestConvertWritesLeanFile(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	mdPath := writeMarkdown(t)
	leanPath := strings.TrimSuffix(mdPath, ".md") + ".lean"

	client := &scriptedClient{responses: []openai.ChatCompletionResponse{
		reply("", openai.ToolCall{
			ID:   "call-1",
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      "read_file",
				Arguments: `{"file_path":"` + mdPath + `"}`,
			},
		}),
		reply("", openai.ToolCall{
			ID:   "call-2",
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      "run_shell_command",
				Arguments: `{"command":"printf 'theorem zero_mul' > ` + leanPath + `"}`,
			},
		}),
		reply("Wrote " + leanPath),
	}}
	a, out := newTestApp(t, testConfig(), client)

	if err := a.convert(context.Background(), mdPath, &operationCanceler{}); err != nil {
		t.Fatalf("convert failed: %v", err)
	}

	first := client.requests[0]
	if got := first.Messages[1].Content; got != "read and analyse the file "+mdPath+", do the lean conversion" {
		t.Fatalf("unexpected task message %q", got)
	}
	if !strings.Contains(first.Messages[0].Content, "Lean 4") {
		t.Fatal("expected the system prompt to be sent first")
	}

	data, err := os.ReadFile(leanPath)
	if err != nil {
		t.Fatalf("expected lean file: %v", err)
	}
	if string(data) != "theorem zero_mul" {
		t.Fatalf("unexpected lean file content %q", data)
	}

	text := out.String()
	for _, want := range []string{"Human Message", "Tool Message", "Theorem: 0 * a = 0.", "Wrote " + leanPath} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected transcript to contain %q", want)
		}
	}
}

func TestConvertReportsAPIError(t *testing.T) {
	client := &scriptedClient{err: errors.New("quota exceeded")}
	a, out := newTestApp(t, testConfig(), client)

	err := a.convert(context.Background(), writeMarkdown(t), nil)
	var apiErr *agent.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !strings.Contains(out.String(), "Human Message") {
		t.Fatal("expected the transcript to be printed on failure")
	}
}

func TestSendPrintsOnlyNewMessages(t *testing.T) {
	client := &scriptedClient{responses: []openai.ChatCompletionResponse{reply("first"), reply("second")}}
	a, out := newTestApp(t, testConfig(), client)

	if err := a.send(context.Background(), "one", nil); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !strings.Contains(out.String(), "System Message") {
		t.Fatal("expected first print to include the system prompt")
	}

	out.Reset()
	if err := a.send(context.Background(), "two", nil); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	text := out.String()
	if strings.Contains(text, "System Message") || strings.Contains(text, "first") {
		t.Fatalf("expected only new messages, got:\n%s", text)
	}
	if !strings.Contains(text, "second") {
		t.Fatalf("expected new reply, got:\n%s", text)
	}
}

func TestNewAppPolicyFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Tools.Deny = []string{"run_shell_command"}
	a, _ := newTestApp(t, cfg, &scriptedClient{})

	if a.registry.GetPermission("run_shell_command").Allowed {
		t.Fatal("expected run_shell_command to be denied by config")
	}
}

func TestNewAppWithDefaultClient(t *testing.T) {
	a, err := newApp(testConfig(), zerolog.Nop(), nil, nil)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	defer a.Close()
	if len(a.agent.Transcript()) != 1 {
		t.Fatal("expected the system prompt to be loaded")
	}
}
