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
	"bufio"
	"bytes"
	"context"
	"strings"

	"github.com/rs/zerolog"

	apperrors "leanagent/internal/errors"
)

// FileReader returns slices of text files by line.
type FileReader struct {
	Limits Limits
	Logger zerolog.Logger
}

// NewFileReader returns a reader bounded by limits.
func NewFileReader(limits Limits, logger zerolog.Logger) *FileReader {
	return &FileReader{Limits: normalizeLimits(limits), Logger: logger}
}

// Read returns lines [offset, offset+limit) of path with their original
// terminators. A nil offset starts at the first line; a nil limit reads to
// the end. An offset past the last line yields "".
func (r *FileReader) Read(ctx context.Context, path string, offset, limit *int) (string, error) {
	ev := r.Logger.Info().Str("file", path)
	if offset != nil {
		ev = ev.Int("offset", *offset)
	}
	if limit != nil {
		ev = ev.Int("limit", *limit)
	}
	ev.Msg("Reading file")

	if offset != nil && *offset < 0 {
		return "", invalidArgumentf("offset must not be negative")
	}
	if limit != nil && *limit < 0 {
		return "", invalidArgumentf("limit must not be negative")
	}

	info, err := statRegularFile(path)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			return "", err
		}
		return "", readFailed(err)
	}
	if err := ensureContext(ctx); err != nil {
		return "", readFailed(err)
	}

	data, err := readTextFile(path, info, normalizeLimits(r.Limits))
	if err != nil {
		return "", readFailed(err)
	}

	lines := splitLinesKeepEnds(data)
	start := 0
	if offset != nil {
		start = *offset
	}
	if start >= len(lines) {
		return "", nil
	}
	lines = lines[start:]
	if limit != nil && *limit < len(lines) {
		lines = lines[:*limit]
	}
	return strings.Join(lines, ""), nil
}

// splitLinesKeepEnds splits data after every '\n'. A trailing fragment
// without a newline is the last line.
func splitLinesKeepEnds(data []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	scanner.Split(scanLinesKeepEnds)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func scanLinesKeepEnds(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i+1], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
