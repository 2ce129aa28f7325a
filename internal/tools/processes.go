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
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "leanagent/internal/errors"
)

const backgroundOutputTail = 16 * 1024

// ProcessStatus is a snapshot of a background process.
type ProcessStatus struct {
	PID        int
	Command    string
	StartedAt  time.Time
	Running    bool
	ExitCode   int
	FinishedAt time.Time
	Output     string
}

func (s ProcessStatus) String() string {
	var b strings.Builder
	if s.Running {
		fmt.Fprintf(&b, "PID %d: running (since %s)\n", s.PID, s.StartedAt.Format(time.RFC3339))
	} else {
		fmt.Fprintf(&b, "PID %d: exited (code %d)\n", s.PID, s.ExitCode)
	}
	fmt.Fprintf(&b, "Command: %s", s.Command)
	if out := strings.TrimSpace(s.Output); out != "" {
		fmt.Fprintf(&b, "\nOutput:\n%s", out)
	}
	return b.String()
}

type backgroundProcess struct {
	pid       int
	command   string
	startedAt time.Time
	output    *tailBuffer

	done       chan struct{}
	exitCode   int
	finishedAt time.Time
}

// ProcessTable keeps track of background commands so that they are reaped
// and their exit status stays queryable.
type ProcessTable struct {
	mu     sync.Mutex
	procs  map[int]*backgroundProcess
	logger zerolog.Logger
}

// NewProcessTable returns an empty table.
func NewProcessTable(logger zerolog.Logger) *ProcessTable {
	return &ProcessTable{
		procs:  make(map[int]*backgroundProcess),
		logger: logger,
	}
}

// track registers a started command and reaps it in a goroutine.
func (t *ProcessTable) track(cmd *exec.Cmd, command string, output *tailBuffer) {
	p := &backgroundProcess{
		pid:       cmd.Process.Pid,
		command:   command,
		startedAt: time.Now(),
		output:    output,
		done:      make(chan struct{}),
	}

	t.mu.Lock()
	t.procs[p.pid] = p
	t.mu.Unlock()

	go func() {
		err := cmd.Wait()
		code := 0
		if err != nil {
			code = -1
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			}
		}

		t.mu.Lock()
		p.exitCode = code
		p.finishedAt = time.Now()
		t.mu.Unlock()
		close(p.done)

		t.logger.Debug().Int("pid", p.pid).Int("exit_code", code).Str("command", command).Msg("Background process exited")
	}()
}

func (t *ProcessTable) lookup(pid int) (*backgroundProcess, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.procs[pid]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "No background process with PID %d", pid)
	}
	return p, nil
}

// Status reports whether pid is still running, its exit code, and the tail
// of its combined output.
func (t *ProcessTable) Status(pid int) (ProcessStatus, error) {
	p, err := t.lookup(pid)
	if err != nil {
		return ProcessStatus{}, err
	}

	status := ProcessStatus{
		PID:       p.pid,
		Command:   p.command,
		StartedAt: p.startedAt,
		Output:    p.output.String(),
	}
	select {
	case <-p.done:
		t.mu.Lock()
		status.ExitCode = p.exitCode
		status.FinishedAt = p.finishedAt
		t.mu.Unlock()
	default:
		status.Running = true
	}
	return status, nil
}

// Wait blocks until pid exits or timeout elapses and returns its status.
func (t *ProcessTable) Wait(pid int, timeout time.Duration) (ProcessStatus, error) {
	p, err := t.lookup(pid)
	if err != nil {
		return ProcessStatus{}, err
	}
	select {
	case <-p.done:
	case <-time.After(timeout):
	}
	return t.Status(pid)
}

// Terminate kills the process group of a tracked background process.
func (t *ProcessTable) Terminate(pid int) error {
	p, err := t.lookup(pid)
	if err != nil {
		return err
	}
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := killProcessGroup(p.pid); err != nil && !errors.Is(err, errProcessGone) {
		return apperrors.Wrap(apperrors.CodeCommandFailed, fmt.Sprintf("Failed to kill process %d", pid), err)
	}
	t.logger.Info().Int("pid", pid).Msg("Background process killed")
	return nil
}

// PIDs returns the tracked process ids in ascending order.
func (t *ProcessTable) PIDs() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	pids := make([]int, 0, len(t.procs))
	for pid := range t.procs {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids
}

// tailBuffer is an io.Writer that keeps only the last max bytes written.
type tailBuffer struct {
	mu   sync.Mutex
	max  int
	data []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	if over := len(b.data) - b.max; over > 0 {
		b.data = append(b.data[:0], b.data[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	if b == nil {
		return ""
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}
