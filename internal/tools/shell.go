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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "leanagent/internal/errors"
)

const (
	defaultShell = "sh"
	// pipeWaitDelay bounds how long Wait keeps reading stdio after the shell
	// is gone, in case an escaped grandchild still holds the pipes.
	pipeWaitDelay = 2 * time.Second
)

// CommandError describes a shell command that exited with a non-zero status.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("Command failed with exit code %d", e.ExitCode)
	}
	return fmt.Sprintf("Command failed with exit code %d: %s", e.ExitCode, e.Stderr)
}

// RunRequest describes one shell invocation.
type RunRequest struct {
	Command    string
	Cwd        string
	Timeout    time.Duration
	Background bool
}

// CommandRunner executes commands through a system shell. Each command gets
// its own process group so that a timeout can take down everything the
// shell spawned.
type CommandRunner struct {
	Shell     string
	Processes *ProcessTable
	Logger    zerolog.Logger
}

// NewCommandRunner returns a runner using shell (default "sh").
func NewCommandRunner(shell string, processes *ProcessTable, logger zerolog.Logger) *CommandRunner {
	if strings.TrimSpace(shell) == "" {
		shell = defaultShell
	}
	if processes == nil {
		processes = NewProcessTable(logger)
	}
	return &CommandRunner{
		Shell:     shell,
		Processes: processes,
		Logger:    logger,
	}
}

// Run executes req. Foreground commands return trimmed stdout; background
// commands return a message carrying the new PID.
func (c *CommandRunner) Run(ctx context.Context, req RunRequest) (string, error) {
	cwd := req.Cwd
	if cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cwd = wd
		}
	}
	c.Logger.Info().
		Str("command", req.Command).
		Str("cwd", cwd).
		Dur("timeout", req.Timeout).
		Bool("background", req.Background).
		Msg("Running shell command")

	if req.Background {
		return c.startBackground(req)
	}
	return c.runForeground(ctx, req)
}

func (c *CommandRunner) runForeground(ctx context.Context, req RunRequest) (string, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Shell, "-c", req.Command)
	cmd.Dir = req.Cwd
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return killProcessGroup(cmd.Process.Pid)
	}
	cmd.WaitDelay = pipeWaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.Logger.Warn().Str("command", req.Command).Dur("duration", duration).Msg("Shell command timed out")
			if req.Timeout > 0 {
				return "", apperrors.Newf(apperrors.CodeCommandTimedOut, "Command timed out after %s", req.Timeout)
			}
			return "", apperrors.New(apperrors.CodeCommandTimedOut, "Command timed out")
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", apperrors.Wrap(apperrors.CodeCommandFailed, "Command canceled", ctx.Err())
		}

		// A clean exit whose stdio is still held open by a leftover child.
		if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
			c.Logger.Debug().Str("command", req.Command).Dur("duration", duration).Msg("Shell command exited with output still held open")
			return strings.TrimSpace(stdout.String()), nil
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cmdErr := &CommandError{
				Command:  req.Command,
				ExitCode: exitErr.ExitCode(),
				Stderr:   strings.TrimSpace(stderr.String()),
			}
			c.Logger.Debug().Str("command", req.Command).Int("exit_code", cmdErr.ExitCode).Msg("Shell command failed")
			return "", apperrors.Wrap(apperrors.CodeCommandFailed, "", cmdErr)
		}
		return "", apperrors.Wrap(apperrors.CodeCommandFailed, "Command could not be run", err)
	}

	c.Logger.Debug().Str("command", req.Command).Dur("duration", duration).Int("stdout_bytes", stdout.Len()).Msg("Shell command finished")
	return strings.TrimSpace(stdout.String()), nil
}

func (c *CommandRunner) startBackground(req RunRequest) (string, error) {
	cmd := exec.Command(c.Shell, "-c", req.Command)
	cmd.Dir = req.Cwd
	setProcessGroup(cmd)
	cmd.WaitDelay = pipeWaitDelay

	output := newTailBuffer(backgroundOutputTail)
	cmd.Stdout = output
	cmd.Stderr = output

	if err := cmd.Start(); err != nil {
		return "", apperrors.Wrap(apperrors.CodeCommandFailed, "Command could not be started", err)
	}

	pid := cmd.Process.Pid
	c.Processes.track(cmd, req.Command, output)
	return fmt.Sprintf("Process started in background with PID %d", pid), nil
}
