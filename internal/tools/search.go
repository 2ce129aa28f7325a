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
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	apperrors "leanagent/internal/errors"
)

// SearchBackend selects the program used by the grep tool.
type SearchBackend string

const (
	SearchBackendAuto    SearchBackend = "auto"
	SearchBackendRipgrep SearchBackend = "rg"
	SearchBackendGrep    SearchBackend = "grep"
)

// Output modes accepted by the grep tool.
const (
	OutputContent          = "content"
	OutputFilesWithMatches = "files_with_matches"
	OutputCount            = "count"
)

// Both ripgrep and grep use exit status 1 for "nothing matched".
const searchNoMatchExit = 1

// SearchRequest holds the options of one search.
type SearchRequest struct {
	Pattern         string
	Path            string
	Glob            string
	Type            string
	OutputMode      string
	CaseInsensitive bool
	LineNumbers     bool
	Before          *int
	After           *int
	Context         *int
	HeadLimit       *int
	Multiline       bool
}

// Searcher runs regular expression searches through ripgrep or grep. It
// always builds an argument vector; no shell is involved.
type Searcher struct {
	Backend  SearchBackend
	Logger   zerolog.Logger
	lookPath func(string) (string, error)
}

// NewSearcher returns a searcher for backend ("auto", "rg" or "grep").
func NewSearcher(backend SearchBackend, logger zerolog.Logger) *Searcher {
	if backend == "" {
		backend = SearchBackendAuto
	}
	return &Searcher{
		Backend:  backend,
		Logger:   logger,
		lookPath: exec.LookPath,
	}
}

// resolve picks the binary to run.
func (s *Searcher) resolve() (SearchBackend, string, error) {
	switch s.Backend {
	case SearchBackendRipgrep, SearchBackendGrep:
		bin, err := s.lookPath(string(s.Backend))
		if err != nil {
			return "", "", apperrors.Wrap(apperrors.CodeSearchFailed, "search backend "+string(s.Backend)+" not found", err)
		}
		return s.Backend, bin, nil
	case SearchBackendAuto:
		if bin, err := s.lookPath("rg"); err == nil {
			return SearchBackendRipgrep, bin, nil
		}
		bin, err := s.lookPath("grep")
		if err != nil {
			return "", "", apperrors.Wrap(apperrors.CodeSearchFailed, "neither rg nor grep found in PATH", err)
		}
		return SearchBackendGrep, bin, nil
	default:
		return "", "", invalidArgumentf("unknown search backend %q", s.Backend)
	}
}

// Search runs req. A search that matches nothing yields "" and no error.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (string, error) {
	if req.Pattern == "" {
		return "", invalidArgumentf("missing or invalid 'pattern' parameter")
	}

	backend, bin, err := s.resolve()
	if err != nil {
		return "", err
	}

	var args []string
	if backend == SearchBackendRipgrep {
		args, err = ripgrepArgs(req)
	} else {
		args, err = grepArgs(req)
	}
	if err != nil {
		return "", err
	}

	s.Logger.Info().
		Str("pattern", req.Pattern).
		Str("path", req.Path).
		Str("backend", string(backend)).
		Msg("Running search")

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == searchNoMatchExit {
			return "", nil
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", apperrors.Newf(apperrors.CodeSearchFailed, "Grep command failed: %s", msg)
	}

	return applyHeadLimit(strings.TrimSpace(stdout.String()), req.HeadLimit), nil
}

func outputModeFlag(mode string) (string, error) {
	switch mode {
	case "", OutputContent:
		return "", nil
	case OutputFilesWithMatches:
		return "-l", nil
	case OutputCount:
		return "-c", nil
	}
	return "", invalidArgumentf("unknown output_mode %q (want content, files_with_matches or count)", mode)
}

func contextArgs(req SearchRequest) ([]string, error) {
	var args []string
	for _, opt := range []struct {
		flag  string
		value *int
	}{
		{"-B", req.Before},
		{"-A", req.After},
		{"-C", req.Context},
	} {
		if opt.value == nil {
			continue
		}
		if *opt.value < 0 {
			return nil, invalidArgumentf("%s must not be negative", strings.TrimPrefix(opt.flag, "-"))
		}
		args = append(args, opt.flag, strconv.Itoa(*opt.value))
	}
	return args, nil
}

func searchPath(req SearchRequest) string {
	if req.Path == "" {
		return "."
	}
	return req.Path
}

func ripgrepArgs(req SearchRequest) ([]string, error) {
	args := []string{"--color", "never", "--no-heading"}
	mode, err := outputModeFlag(req.OutputMode)
	if err != nil {
		return nil, err
	}
	if mode != "" {
		args = append(args, mode)
	}
	if req.CaseInsensitive {
		args = append(args, "-i")
	}
	if req.LineNumbers {
		args = append(args, "-n")
	}
	ctxArgs, err := contextArgs(req)
	if err != nil {
		return nil, err
	}
	args = append(args, ctxArgs...)
	if req.Glob != "" {
		args = append(args, "--glob", req.Glob)
	}
	if req.Type != "" {
		args = append(args, "--type", req.Type)
	}
	if req.Multiline {
		args = append(args, "--multiline")
	}
	return append(args, "--regexp", req.Pattern, "--", searchPath(req)), nil
}

func grepArgs(req SearchRequest) ([]string, error) {
	if req.Type != "" {
		return nil, invalidArgumentf("'type' requires the rg search backend")
	}
	if req.Multiline {
		return nil, invalidArgumentf("'multiline' requires the rg search backend")
	}

	args := []string{"-r", "-E", "--color=never"}
	mode, err := outputModeFlag(req.OutputMode)
	if err != nil {
		return nil, err
	}
	if mode != "" {
		args = append(args, mode)
	}
	if req.CaseInsensitive {
		args = append(args, "-i")
	}
	if req.LineNumbers {
		args = append(args, "-n")
	}
	ctxArgs, err := contextArgs(req)
	if err != nil {
		return nil, err
	}
	args = append(args, ctxArgs...)
	if req.Glob != "" {
		args = append(args, "--include="+req.Glob)
	}
	return append(args, "-e", req.Pattern, "--", searchPath(req)), nil
}

// applyHeadLimit keeps the first limit lines of output.
func applyHeadLimit(output string, limit *int) string {
	if limit == nil || output == "" {
		return output
	}
	if *limit <= 0 {
		return ""
	}
	lines := strings.SplitN(output, "\n", *limit+1)
	if len(lines) <= *limit {
		return output
	}
	return strings.Join(lines[:*limit], "\n")
}
