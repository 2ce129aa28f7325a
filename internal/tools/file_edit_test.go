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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	apperrors "leanagent/internal/errors"
)

func newTestEditor() *FileEditor {
	return NewFileEditor(DefaultLimits(), zerolog.Nop())
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proof.lean")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func readBack(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read back %s: %v", path, err)
	}
	return string(data)
}

func strPtr(s string) *string { return &s }

func TestEditOneReplacesFirstOccurrence(t *testing.T) {
	path := writeTempFile(t, "aaa")
	msg, err := newTestEditor().EditOne(context.Background(), path, "a", "b", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg != "Successfully edited "+path {
		t.Fatalf("unexpected message %q", msg)
	}
	if got := readBack(t, path); got != "baa" {
		t.Fatalf("expected baa, got %q", got)
	}
}

func TestEditOneReplaceAll(t *testing.T) {
	path := writeTempFile(t, "aaa")
	if _, err := newTestEditor().EditOne(context.Background(), path, "a", "b", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := readBack(t, path); got != "bbb" {
		t.Fatalf("expected bbb, got %q", got)
	}
}

func TestEditOneMissingOldStringLeavesContent(t *testing.T) {
	path := writeTempFile(t, "theorem foo")
	if _, err := newTestEditor().EditOne(context.Background(), path, "lemma", "theorem", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := readBack(t, path); got != "theorem foo" {
		t.Fatalf("content should be unchanged, got %q", got)
	}
}

func TestEditMissingFileCreatesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.lean")
	_, err := newTestEditor().EditOne(context.Background(), path, "a", "b", false)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("edit must not create the file, stat err: %v", statErr)
	}

	_, err = newTestEditor().EditMany(context.Background(), path, nil)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestEditDirectoryIsNotFound(t *testing.T) {
	_, err := newTestEditor().EditOne(context.Background(), t.TempDir(), "a", "b", false)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestEditManyAppliesSequentially(t *testing.T) {
	path := writeTempFile(t, "a")
	ops := []EditOperation{
		{OldString: strPtr("a"), NewString: strPtr("b")},
		{OldString: strPtr("b"), NewString: strPtr("c")},
	}
	msg, err := newTestEditor().EditMany(context.Background(), path, ops)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg != "Successfully applied multiple edits to "+path {
		t.Fatalf("unexpected message %q", msg)
	}
	if got := readBack(t, path); got != "c" {
		t.Fatalf("expected c, got %q", got)
	}
}

func TestEditManySkipsIncompleteOperations(t *testing.T) {
	path := writeTempFile(t, "x y x")
	ops := []EditOperation{
		{OldString: nil, NewString: strPtr("zzz")},
		{OldString: strPtr("y"), NewString: nil},
		{OldString: strPtr("x"), NewString: strPtr("w"), ReplaceAll: true},
	}
	if _, err := newTestEditor().EditMany(context.Background(), path, ops); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := readBack(t, path); got != "w y w" {
		t.Fatalf("expected w y w, got %q", got)
	}
}

func TestEditRejectsBinaryAndLeavesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.bin")
	original := []byte{0xff, 0xfe, 0x00, 'a'}
	if err := os.WriteFile(path, original, 0o644); err != nil {
		t.Fatalf("failed to write blob: %v", err)
	}
	_, err := newTestEditor().EditOne(context.Background(), path, "a", "b", false)
	if !errors.Is(err, apperrors.ErrEditFailed) {
		t.Fatalf("expected edit failed error, got %v", err)
	}
	if got := readBack(t, path); got != string(original) {
		t.Fatal("failed edit must leave the file untouched")
	}
}

func TestEditRejectsOversizedResult(t *testing.T) {
	path := writeTempFile(t, "ab")
	editor := NewFileEditor(Limits{MaxFileSizeBytes: 4}, zerolog.Nop())
	_, err := editor.EditOne(context.Background(), path, "a", "aaaaaa", false)
	if !errors.Is(err, apperrors.ErrEditFailed) {
		t.Fatalf("expected edit failed error, got %v", err)
	}
	if got := readBack(t, path); got != "ab" {
		t.Fatalf("failed edit must leave the file untouched, got %q", got)
	}
}

func TestEditPreservesModeAndLeavesNoTempFiles(t *testing.T) {
	path := writeTempFile(t, "hello")
	if err := os.Chmod(path, 0o600); err != nil {
		t.Fatalf("chmod failed: %v", err)
	}
	if _, err := newTestEditor().EditOne(context.Background(), path, "hello", "world", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600, got %o", info.Mode().Perm())
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the edited file, found %d entries", len(entries))
	}
}

func TestEditThroughSymlinkUpdatesTarget(t *testing.T) {
	target := writeTempFile(t, "aaa")
	link := filepath.Join(t.TempDir(), "link.lean")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	msg, err := newTestEditor().EditOne(context.Background(), link, "a", "b", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg != "Successfully edited "+link {
		t.Fatalf("unexpected message %q", msg)
	}
	if got := readBack(t, target); got != "baa" {
		t.Fatalf("expected target to read baa, got %q", got)
	}
	info, err := os.Lstat(link)
	if err != nil {
		t.Fatalf("lstat failed: %v", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("link was replaced by a regular file")
	}
	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the target file, found %d entries", len(entries))
	}
}

func TestEditDanglingSymlinkIsNotFound(t *testing.T) {
	link := filepath.Join(t.TempDir(), "link.lean")
	if err := os.Symlink(filepath.Join(t.TempDir(), "gone.lean"), link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	_, err := newTestEditor().EditOne(context.Background(), link, "a", "b", false)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestEditCanceledContext(t *testing.T) {
	path := writeTempFile(t, "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestEditor().EditOne(ctx, path, "a", "b", false); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled error, got %v", err)
	}
	if got := readBack(t, path); got != "a" {
		t.Fatalf("canceled edit must not write, got %q", got)
	}
}

func TestProperty_FileEditor(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(42)

	properties := gopter.NewProperties(parameters)
	dir := t.TempDir()
	path := filepath.Join(dir, "prop.txt")
	editor := newTestEditor()
	nonEmpty := gen.AlphaString().SuchThat(func(s string) bool { return s != "" })

	properties.Property("edit matches literal replacement", prop.ForAll(
		func(content, old, replacement string, all bool) bool {
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return false
			}
			if _, err := editor.EditOne(context.Background(), path, old, replacement, all); err != nil {
				return false
			}
			n := 1
			if all {
				n = -1
			}
			data, err := os.ReadFile(path)
			return err == nil && string(data) == strings.Replace(content, old, replacement, n)
		},
		gen.AlphaString(),
		nonEmpty,
		gen.AlphaString(),
		gen.Bool(),
	))

	properties.Property("a batch equals its operations applied one by one", prop.ForAll(
		func(content string, olds, news []string) bool {
			var ops []EditOperation
			for i := range olds {
				if i >= len(news) {
					break
				}
				ops = append(ops, EditOperation{OldString: strPtr(olds[i]), NewString: strPtr(news[i]), ReplaceAll: i%2 == 0})
			}

			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return false
			}
			for _, op := range ops {
				if _, err := editor.EditOne(context.Background(), path, *op.OldString, *op.NewString, op.ReplaceAll); err != nil {
					return false
				}
			}
			sequential, _ := os.ReadFile(path)

			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return false
			}
			if _, err := editor.EditMany(context.Background(), path, ops); err != nil {
				return false
			}
			batched, _ := os.ReadFile(path)
			return string(sequential) == string(batched)
		},
		gen.AlphaString(),
		gen.SliceOfN(3, nonEmpty),
		gen.SliceOfN(3, gen.AlphaString()),
	))

	properties.TestingRun(t)
}
