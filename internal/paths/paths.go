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

package paths

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidatePathString validates raw path input before resolution.
func ValidatePathString(path string, maxLen int) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.IndexByte(path, 0) != -1 {
		return fmt.Errorf("path contains null byte")
	}
	if !utf8.ValidString(path) {
		return fmt.Errorf("path is not valid UTF-8")
	}
	for _, r := range path {
		if unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) || unicode.Is(unicode.Me, r) {
			return fmt.Errorf("path contains unsupported unicode combining mark")
		}
	}
	if maxLen > 0 {
		if len(path) > maxLen {
			return fmt.Errorf("path exceeds maximum length of %d characters", maxLen)
		}
		if len(filepath.Clean(path)) > maxLen {
			return fmt.Errorf("path exceeds maximum length of %d characters", maxLen)
		}
	}
	return nil
}

// Resolve returns the absolute, symlink-free form of path. Relative paths are
// taken relative to baseDir. The final element does not need to exist; when
// it does not, only its parent is resolved.
func Resolve(path, baseDir string) (string, error) {
	candidate := path
	if !filepath.IsAbs(candidate) {
		baseAbs, err := filepath.Abs(baseDir)
		if err != nil {
			return "", fmt.Errorf("invalid base directory: %w", err)
		}
		candidate = filepath.Join(baseAbs, candidate)
	}
	candidate = filepath.Clean(candidate)

	resolved, err := filepath.EvalSymlinks(candidate)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	parent, err := filepath.EvalSymlinks(filepath.Dir(candidate))
	if errors.Is(err, fs.ErrNotExist) {
		return candidate, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve parent path: %w", err)
	}
	return filepath.Join(parent, filepath.Base(candidate)), nil
}

// Within reports whether path equals base or lies below it. Both must be
// clean absolute paths.
func Within(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// CheckWhitelist returns an error unless resolved lies under one of the
// whitelist entries, which are resolved against baseResolved. An empty
// whitelist allows everything.
func CheckWhitelist(resolved string, whitelist []string, baseResolved string) error {
	if len(whitelist) == 0 {
		return nil
	}
	for _, entry := range whitelist {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		allowed, err := Resolve(entry, baseResolved)
		if err != nil {
			return fmt.Errorf("whitelist entry %q: %w", entry, err)
		}
		if Within(resolved, allowed) {
			return nil
		}
	}
	return fmt.Errorf("path %s is outside allowed tool base directories", resolved)
}
