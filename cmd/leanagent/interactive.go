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
	"strings"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
)

type readlineAction int

const (
	readlineContinue readlineAction = iota
	readlineExit
	readlineUnhandled
)

// lineReader is the part of *readline.Instance the follow-up loop uses.
type lineReader interface {
	Readline() (string, error)
}

func runInteractive(ctx context.Context, a *app, canceler *operationCanceler, logger zerolog.Logger) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:              "❯ ",
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		FuncFilterInputRune: filterInterruptRune,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(a.out, "Follow-up mode, type exit to quit.")
	return followUpLoop(ctx, a, rl, canceler, logger)
}

// followUpLoop feeds each line to the agent until exit, quit or EOF. Agent
// failures are reported and the loop keeps going.
func followUpLoop(ctx context.Context, a *app, rl lineReader, canceler *operationCanceler, logger zerolog.Logger) error {
	for {
		line, err := rl.Readline()
		switch classifyReadlineError(line, err) {
		case readlineContinue:
			continue
		case readlineExit:
			logger.Debug().Msg("Readline closed")
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isExitCommand(line) {
			return nil
		}

		logger.Info().Str("user_input", line).Msg("User input received")
		if err := a.send(ctx, line, canceler); err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(a.out, "Canceled.")
				continue
			}
			fmt.Fprintf(a.out, "Error: %v\n", err)
		}
	}
}

func isExitCommand(line string) bool {
	switch strings.ToLower(line) {
	case "exit", "quit", "/exit", "/quit":
		return true
	}
	return false
}

func classifyReadlineError(line string, err error) readlineAction {
	switch {
	case err == nil:
		return readlineUnhandled
	case err == readline.ErrInterrupt:
		return readlineContinue
	case err == io.EOF:
		if strings.TrimSpace(line) == "" {
			return readlineExit
		}
		return readlineContinue
	default:
		return readlineUnhandled
	}
}
