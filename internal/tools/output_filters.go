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
	"regexp"
	"strings"
	"unicode/utf8"
)

// OutputFilterConfig controls sanitization and truncation for tool outputs.
type OutputFilterConfig struct {
	MaxChars     int
	StripANSI    bool
	StripControl bool
}

const defaultMaxOutputChars = 30000

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]|\x1b\][^\x1b]*(?:\x07|\x1b\\)`)

// DefaultOutputFilterConfig returns default output filtering settings.
func DefaultOutputFilterConfig() OutputFilterConfig {
	return OutputFilterConfig{
		MaxChars:     defaultMaxOutputChars,
		StripANSI:    true,
		StripControl: true,
	}
}

func normalizeOutputFilterConfig(config OutputFilterConfig) OutputFilterConfig {
	if config.MaxChars <= 0 {
		config.MaxChars = defaultMaxOutputChars
	}
	return config
}

// sanitizeToolOutput applies the filters to text headed back to the model and
// reports whether it was cut. File contents on disk never pass through here.
func sanitizeToolOutput(config OutputFilterConfig, output string) (string, bool) {
	if config.StripANSI {
		output = ansiPattern.ReplaceAllString(output, "")
	}
	if config.StripControl {
		output = strings.Map(keepPrintable, output)
	}
	if config.MaxChars <= 0 || utf8.RuneCountInString(output) <= config.MaxChars {
		return output, false
	}

	runes := []rune(output)
	return string(runes[:config.MaxChars]) + truncationNotice(len(runes)-config.MaxChars), true
}

func truncationNotice(dropped int) string {
	return fmt.Sprintf("\n... [truncated %d characters]", dropped)
}

// keepPrintable drops C0 controls and DEL but keeps line structure.
func keepPrintable(r rune) rune {
	switch {
	case r == '\n', r == '\r', r == '\t':
		return r
	case r < 0x20, r == 0x7f:
		return -1
	default:
		return r
	}
}
