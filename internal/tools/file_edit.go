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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	apperrors "leanagent/internal/errors"
)

// EditOperation is one literal substitution of a multi_edit batch. A nil
// OldString or NewString makes the operation a no-op.
type EditOperation struct {
	OldString  *string `json:"old_string"`
	NewString  *string `json:"new_string"`
	ReplaceAll bool    `json:"replace_all,omitempty"`
}

// FileEditor applies literal text substitutions to existing files.
type FileEditor struct {
	Limits Limits
	Logger zerolog.Logger
}

// NewFileEditor returns an editor bounded by limits.
func NewFileEditor(limits Limits, logger zerolog.Logger) *FileEditor {
	return &FileEditor{Limits: normalizeLimits(limits), Logger: logger}
}

// EditOne replaces the first occurrence of oldString in path, or every
// occurrence when replaceAll is set.
func (e *FileEditor) EditOne(ctx context.Context, path, oldString, newString string, replaceAll bool) (string, error) {
	e.Logger.Info().
		Str("file", path).
		Int("old_len", len(oldString)).
		Int("new_len", len(newString)).
		Bool("replace_all", replaceAll).
		Msg("Editing file")

	op := EditOperation{OldString: &oldString, NewString: &newString, ReplaceAll: replaceAll}
	if err := e.apply(ctx, path, []EditOperation{op}); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully edited %s", path), nil
}

// EditMany applies ops in order to one in-memory copy of path and writes
// the result once. Operation n sees the output of operations 1..n-1.
func (e *FileEditor) EditMany(ctx context.Context, path string, ops []EditOperation) (string, error) {
	e.Logger.Info().Str("file", path).Int("edits", len(ops)).Msg("Applying multiple edits")

	if err := e.apply(ctx, path, ops); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully applied multiple edits to %s", path), nil
}

func (e *FileEditor) apply(ctx context.Context, path string, ops []EditOperation) error {
	// Edits go through symlinks to the file they name.
	if target, err := filepath.EvalSymlinks(path); err == nil {
		path = target
	}
	info, err := statRegularFile(path)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			return err
		}
		return editFailed(err)
	}

	if err := ensureContext(ctx); err != nil {
		return editFailed(err)
	}

	limits := normalizeLimits(e.Limits)
	original, err := readTextFile(path, info, limits)
	if err != nil {
		return editFailed(err)
	}

	content := applyEdits(string(original), ops, func(i int) {
		e.Logger.Debug().Str("file", path).Int("edit", i).Msg("old_string not found, edit left content unchanged")
	})

	if int64(len(content)) > limits.MaxFileSizeBytes {
		return editFailed(fmt.Errorf("edited file would exceed maximum size of %d bytes", limits.MaxFileSizeBytes))
	}
	if err := ensureContext(ctx); err != nil {
		return editFailed(err)
	}
	if err := writeFileAtomic(path, []byte(content), info.Mode().Perm()); err != nil {
		return editFailed(err)
	}
	return nil
}

// applyEdits runs ops over content. missed is called with the index of every
// complete operation whose old string did not occur.
func applyEdits(content string, ops []EditOperation, missed func(int)) string {
	for i, op := range ops {
		if op.OldString == nil || op.NewString == nil {
			continue
		}
		if !strings.Contains(content, *op.OldString) {
			if missed != nil {
				missed(i)
			}
			continue
		}
		n := 1
		if op.ReplaceAll {
			n = -1
		}
		content = strings.Replace(content, *op.OldString, *op.NewString, n)
	}
	return content
}
