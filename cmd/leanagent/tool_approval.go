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

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"leanagent/internal/tools"
)

type approvalDecision int

const (
	approvalUnknown approvalDecision = iota
	approvalYes
	approvalNo
	approvalAlways
)

// Argument keys whose values are too long to echo in the prompt.
var redactedArgs = []string{"content", "old_string", "new_string", "edits"}

type toolPromptFunc func(tool string, args map[string]interface{}) (approvalDecision, error)

func newToolApprover() tools.ApprovalFunc {
	return newToolApproverWithPrompt(promptToolApproval)
}

func newToolApproverWithPrompt(prompt toolPromptFunc) tools.ApprovalFunc {
	alwaysAllowed := make(map[string]bool)
	var mu sync.RWMutex
	return func(ctx context.Context, tool string, args map[string]interface{}) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		mu.RLock()
		allowed := alwaysAllowed[tool]
		mu.RUnlock()
		if allowed {
			return true, nil
		}

		decision, err := prompt(tool, args)
		if err != nil {
			return false, err
		}
		if decision == approvalAlways {
			mu.Lock()
			alwaysAllowed[tool] = true
			mu.Unlock()
			return true, nil
		}
		return decision == approvalYes, nil
	}
}

func promptToolApproval(tool string, args map[string]interface{}) (approvalDecision, error) {
	input := os.Stdin
	output := io.Writer(os.Stdout)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		if tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0); err == nil {
			input = tty
			output = tty
			defer tty.Close()
		} else {
			return approvalNo, fmt.Errorf("no TTY available for tool approval")
		}
	}
	return askApproval(bufio.NewReader(input), output, tool, args)
}

func askApproval(reader *bufio.Reader, output io.Writer, tool string, args map[string]interface{}) (approvalDecision, error) {
	argsDisplay := formatApprovalArgs(args)
	for {
		fmt.Fprintf(output, "Allow tool %s%s? (Yes/no/always): ", tool, argsDisplay)
		line, err := reader.ReadString('\n')
		if err != nil {
			return approvalNo, err
		}
		decision := parseApprovalInput(line)
		switch decision {
		case approvalYes, approvalNo, approvalAlways:
			return decision, nil
		default:
			fmt.Fprintln(output, "Please enter yes, no, or always.")
		}
	}
}

func formatApprovalArgs(args map[string]interface{}) string {
	if len(args) == 0 {
		return ""
	}
	shown := make(map[string]interface{}, len(args))
	for k, v := range args {
		shown[k] = v
	}
	for _, key := range redactedArgs {
		delete(shown, key)
	}
	if len(shown) == 0 {
		return ""
	}
	encoded, err := json.Marshal(shown)
	if err != nil {
		return ""
	}
	return fmt.Sprintf(" with args %s", encoded)
}

func parseApprovalInput(input string) approvalDecision {
	normalized := strings.TrimSpace(strings.ToLower(input))
	if normalized == "" {
		return approvalYes
	}
	switch {
	case isPrefixToken(normalized, "yes"):
		return approvalYes
	case isPrefixToken(normalized, "no"):
		return approvalNo
	case isPrefixToken(normalized, "always"):
		return approvalAlways
	default:
		return approvalUnknown
	}
}

func isPrefixToken(input, target string) bool {
	if input == "" || len(input) > len(target) {
		return false
	}
	return strings.HasPrefix(target, input)
}
