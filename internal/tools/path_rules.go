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
	"fmt"
	"os"
	"path/filepath"

	apperrors "leanagent/internal/errors"
	"leanagent/internal/paths"
)

const maxPathLength = 4096

// PathRules decides which filesystem paths the file tools may touch. With an
// empty whitelist every path is accepted, absolute or relative to the working
// directory.
type PathRules struct {
	Whitelist []string
}

// Resolve validates path and returns its absolute, symlink-resolved form.
func (p PathRules) Resolve(path string) (string, error) {
	if err := paths.ValidatePathString(path, maxPathLength); err != nil {
		return "", invalidArgumentf("invalid path: %v", err)
	}

	workdir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to determine working directory: %w", err)
	}

	resolved, err := paths.Resolve(path, workdir)
	if err != nil {
		return "", invalidArgumentf("invalid path: %v", err)
	}

	if len(p.Whitelist) == 0 {
		return resolved, nil
	}

	baseResolved, err := filepath.EvalSymlinks(workdir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	if err := paths.CheckWhitelist(resolved, p.Whitelist, baseResolved); err != nil {
		return "", apperrors.Wrap(apperrors.CodePermission, "path rejected", err)
	}
	return resolved, nil
}

// Check validates path against the rules without changing how the caller
// refers to it.
func (p PathRules) Check(path string) error {
	_, err := p.Resolve(path)
	return err
}
