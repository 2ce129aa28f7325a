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

package agent

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/sashabaranov/go-openai"
)

const transcriptWidth = 80

// palette holds the styles used when printing a transcript.
type palette struct {
	Header    *color.Color
	User      *color.Color
	Assistant *color.Color
	Tool      *color.Color
	Error     *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		Header:    color.New(color.FgMagenta, color.Bold),
		User:      color.New(color.FgBlue),
		Assistant: color.New(color.FgGreen),
		Tool:      color.New(color.FgYellow),
		Error:     color.New(color.FgRed, color.Bold),
	}
	for _, c := range []*color.Color{p.Header, p.User, p.Assistant, p.Tool, p.Error} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// PrintTranscript writes every message of the conversation to w, one titled
// block per message.
func (a *Agent) PrintTranscript(w io.Writer, useColor bool) error {
	return WriteTranscript(w, a.Transcript(), useColor)
}

// WriteTranscript pretty-prints msgs to w.
func WriteTranscript(w io.Writer, msgs []openai.ChatCompletionMessage, useColor bool) error {
	p := newPalette(useColor)
	var b strings.Builder
	for _, msg := range msgs {
		writeMessage(&b, p, msg)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeMessage(b *strings.Builder, p palette, msg openai.ChatCompletionMessage) {
	title, body := messageTitle(msg.Role), p.Assistant
	switch msg.Role {
	case openai.ChatMessageRoleUser:
		body = p.User
	case openai.ChatMessageRoleTool:
		body = p.Tool
		if strings.HasPrefix(msg.Content, "Error:") {
			body = p.Error
		}
	case openai.ChatMessageRoleSystem:
		body = color.New()
		body.DisableColor()
	}

	b.WriteString(p.Header.Sprint(banner(title)))
	b.WriteString("\n")
	if msg.Role == openai.ChatMessageRoleTool && msg.Name != "" {
		fmt.Fprintf(b, "Name: %s\n", msg.Name)
	}
	b.WriteString("\n")
	if msg.Content != "" {
		b.WriteString(body.Sprint(msg.Content))
		b.WriteString("\n")
	}
	if len(msg.ToolCalls) > 0 {
		b.WriteString("Tool Calls:\n")
		for _, call := range msg.ToolCalls {
			fmt.Fprintf(b, "  %s (%s)\n", p.Tool.Sprint(call.Function.Name), call.ID)
			writeArgs(b, call.Function.Arguments)
		}
	}
	b.WriteString("\n")
}

func messageTitle(role string) string {
	switch role {
	case openai.ChatMessageRoleSystem:
		return "System Message"
	case openai.ChatMessageRoleUser:
		return "Human Message"
	case openai.ChatMessageRoleAssistant:
		return "Ai Message"
	case openai.ChatMessageRoleTool:
		return "Tool Message"
	default:
		return "Message"
	}
}

// banner centres title in a line of '=' of transcriptWidth characters.
func banner(title string) string {
	title = " " + title + " "
	fill := transcriptWidth - len(title)
	if fill < 2 {
		return title
	}
	left := fill / 2
	return strings.Repeat("=", left) + title + strings.Repeat("=", fill-left)
}

// writeArgs prints JSON arguments as sorted key: value lines, or raw when
// they do not parse as an object.
func writeArgs(b *strings.Builder, raw string) {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		if strings.TrimSpace(raw) != "" {
			fmt.Fprintf(b, "    %s\n", raw)
		}
		return
	}
	if len(args) == 0 {
		return
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("  Args:\n")
	for _, k := range keys {
		value := args[k]
		if s, ok := value.(string); ok {
			fmt.Fprintf(b, "    %s: %s\n", k, s)
			continue
		}
		encoded, _ := json.Marshal(value)
		fmt.Fprintf(b, "    %s: %s\n", k, encoded)
	}
}
