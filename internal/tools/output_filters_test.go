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
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "leanagent/internal/errors"
)

func TestSanitizeToolOutput(t *testing.T) {
	cfg := DefaultOutputFilterConfig()
	out, cut := sanitizeToolOutput(cfg, "\x1b[1mbold\x1b[0m\x07 text\n\tindent")
	if cut {
		t.Fatal("short output must not be truncated")
	}
	if out != "bold text\n\tindent" {
		t.Fatalf("unexpected sanitized output %q", out)
	}

	cfg.MaxChars = 3
	out, cut = sanitizeToolOutput(cfg, "αβγδε")
	if !cut {
		t.Fatal("expected truncation")
	}
	if out != "αβγ\n... [truncated 2 characters]" {
		t.Fatalf("truncation must count runes, got %q", out)
	}
}

func TestSanitizeToolOutputDisabledFilters(t *testing.T) {
	cfg := normalizeOutputFilterConfig(OutputFilterConfig{})
	if cfg.MaxChars != defaultMaxOutputChars {
		t.Fatalf("expected default max chars, got %d", cfg.MaxChars)
	}
	out, _ := sanitizeToolOutput(cfg, "\x1b[31mred")
	if !strings.Contains(out, "\x1b") {
		t.Fatal("ANSI stripping is off, escape should remain")
	}
}

func TestPathRulesWithoutWhitelistAcceptEverything(t *testing.T) {
	var rules PathRules
	if err := rules.Check("/etc/hosts"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rules.Check("relative/missing.md"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rules.Check("bad\x00path"); !errors.Is(err, apperrors.ErrInvalidArguments) {
		t.Fatalf("expected invalid arguments for NUL byte, got %v", err)
	}
}

func TestPathRulesWhitelist(t *testing.T) {
	allowed := t.TempDir()
	inside := filepath.Join(allowed, "proof.lean")
	if err := os.WriteFile(inside, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	rules := PathRules{Whitelist: []string{allowed}}

	resolved, err := rules.Resolve(inside)
	if err != nil {
		t.Fatalf("expected whitelisted path to pass, got %v", err)
	}
	if filepath.Base(resolved) != "proof.lean" {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if err := rules.Check(filepath.Join(t.TempDir(), "other.lean")); !errors.Is(err, apperrors.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
}
