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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"leanagent/internal/agent"
	"leanagent/internal/config"
	"leanagent/internal/tools"
	systemprompt "leanagent/system_prompt"
)

var errNoTaskFile = errors.New("no markdown file given (pass a path or set task_file in the config)")

// app ties the configured registry and agent to an output stream.
type app struct {
	cfg      *config.Config
	registry *tools.Registry
	agent    *agent.Agent
	logger   zerolog.Logger
	out      io.Writer
	color    bool
	printed  int
}

// newApp builds the tool registry and agent. A nil client selects the
// OpenAI-compatible client from the config.
func newApp(cfg *config.Config, logger zerolog.Logger, approver tools.ApprovalFunc, client agent.ChatClient) (*app, error) {
	opts := cfg.ToolOptions()
	opts.Logger = &logger
	opts.Approver = approver
	registry, err := tools.NewRegistry(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool registry: %w", err)
	}

	for _, warning := range cfg.Validate(registry) {
		logger.Warn().Str("field", warning.Field).Msg(warning.Message)
	}

	var a *agent.Agent
	if client == nil {
		a, err = agent.NewFromConfig(cfg, registry, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create agent: %w", err)
		}
	} else {
		prompt, err := systemprompt.Load()
		if err != nil {
			return nil, err
		}
		a = agent.New(client, registry, agent.Options{
			Model:        cfg.Model,
			Temperature:  cfg.Temperature,
			MaxTokens:    cfg.MaxTokens,
			MaxSteps:     cfg.MaxSteps,
			SystemPrompt: prompt,
			Logger:       logger,
		})
	}

	return &app{
		cfg:      cfg,
		registry: registry,
		agent:    a,
		logger:   logger,
		out:      io.Discard,
	}, nil
}

// resolveTaskPath picks the markdown file from the arguments or the config
// and makes it absolute so the .lean file lands beside it.
func resolveTaskPath(args []string, cfg *config.Config) (string, error) {
	path := cfg.TaskFile
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return "", errNoTaskFile
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("task file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("task file %s is a directory", abs)
	}
	return abs, nil
}

// convert runs the lean conversion task for path and prints the transcript.
func (a *app) convert(ctx context.Context, path string, canceler *operationCanceler) error {
	a.logger.Info().Str("file", path).Msg("Starting lean conversion")
	return a.send(ctx, systemprompt.Task(path), canceler)
}

// send runs one agent turn and prints the messages it produced. The
// transcript is printed even when the run fails.
func (a *app) send(ctx context.Context, text string, canceler *operationCanceler) error {
	ctx, done := canceler.Begin(ctx)
	defer done()

	start := time.Now()
	reply, runErr := a.agent.Run(ctx, text)
	a.logger.Info().
		Dur("duration_ms", time.Since(start)).
		Bool("failed", runErr != nil).
		Int("reply_chars", len(reply)).
		Msg("Agent run completed")

	if err := a.printNew(); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("agent run failed: %w", runErr)
	}
	return nil
}

func (a *app) printNew() error {
	msgs := a.agent.Transcript()
	if a.printed > len(msgs) {
		a.printed = 0
	}
	if err := agent.WriteTranscript(a.out, msgs[a.printed:], a.color); err != nil {
		return err
	}
	a.printed = len(msgs)
	return nil
}

// Close kills background processes the agent left running.
func (a *app) Close() {
	processes := a.registry.Processes()
	for _, pid := range processes.PIDs() {
		status, err := processes.Status(pid)
		if err != nil || !status.Running {
			continue
		}
		if err := processes.Terminate(pid); err != nil {
			a.logger.Warn().Err(err).Int("pid", pid).Msg("Failed to stop background process")
			continue
		}
		a.logger.Info().Int("pid", pid).Msg("Stopped background process")
	}
}
