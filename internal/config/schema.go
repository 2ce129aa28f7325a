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

package config

import (
	"encoding/json"
	"fmt"
	"sort"
)

// SchemaJSON returns the JSON schema for config.json.
func SchemaJSON() string {
	return configSchemaJSON
}

// ExampleConfigJSON returns a minimal example config derived from the schema.
func ExampleConfigJSON() string {
	return exampleConfigJSON
}

func normalizeConfigJSON(data []byte) ([]byte, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	migrateLegacyConfig(raw)
	if err := validateConfigMap(raw, configFields, ""); err != nil {
		return nil, err
	}
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

func migrateLegacyConfig(raw map[string]interface{}) {
	toolsVal, ok := raw["tools"].(map[string]interface{})
	if !ok {
		return
	}
	if _, ok := toolsVal["require_confirmation"]; ok {
		return
	}
	if legacy, ok := toolsVal["confirm"].([]interface{}); ok {
		toolsVal["require_confirmation"] = legacy
		delete(toolsVal, "confirm")
	}
}

// fieldKind is the JSON shape a config value must have.
type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindBool
	kindStringList
	kindNumberMap
	kindObject
)

func (k fieldKind) describe() string {
	switch k {
	case kindString:
		return "a string"
	case kindNumber:
		return "a number"
	case kindBool:
		return "a boolean"
	case kindStringList:
		return "an array of strings"
	case kindNumberMap:
		return "an object of number values"
	default:
		return "an object"
	}
}

// field describes one accepted key. Nested lists the keys of a kindObject.
type field struct {
	kind   fieldKind
	nested map[string]field
}

var configFields = map[string]field{
	"api_key":        {kind: kindString},
	"api_url":        {kind: kindString},
	"model":          {kind: kindString},
	"temperature":    {kind: kindNumber},
	"max_tokens":     {kind: kindNumber},
	"max_steps":      {kind: kindNumber},
	"task_file":      {kind: kindString},
	"shell":          {kind: kindString},
	"search_backend": {kind: kindString},
	"tools": {kind: kindObject, nested: map[string]field{
		"allow":                {kind: kindStringList},
		"ask":                  {kind: kindStringList},
		"deny":                 {kind: kindStringList},
		"require_confirmation": {kind: kindStringList},
	}},
	"tool_limits": {kind: kindObject, nested: map[string]field{
		"max_file_size_bytes": {kind: kindNumber},
	}},
	"tool_path_whitelist": {kind: kindStringList},
	"tool_rate_limits": {kind: kindObject, nested: map[string]field{
		"default_per_minute": {kind: kindNumber},
		"per_tool":           {kind: kindNumberMap},
		"cooldown_seconds":   {kind: kindNumberMap},
	}},
	"tool_timeouts": {kind: kindObject, nested: map[string]field{
		"default_seconds":  {kind: kindNumber},
		"per_tool_seconds": {kind: kindNumberMap},
	}},
	"tool_output_filters": {kind: kindObject, nested: map[string]field{
		"max_chars":     {kind: kindNumber},
		"strip_ansi":    {kind: kindBool},
		"strip_control": {kind: kindBool},
	}},
}

// validateConfigMap rejects unknown keys and values of the wrong shape. Keys
// are visited in sorted order so the reported error is deterministic.
func validateConfigMap(raw map[string]interface{}, fields map[string]field, prefix string) error {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		def, ok := fields[key]
		if !ok {
			return fmt.Errorf("unknown configuration field %q", prefix+key)
		}
		if err := def.check(raw[key], prefix+key); err != nil {
			return err
		}
	}
	return nil
}

func (f field) check(value interface{}, name string) error {
	ok := false
	switch f.kind {
	case kindString:
		_, ok = value.(string)
	case kindNumber:
		_, ok = value.(float64)
	case kindBool:
		_, ok = value.(bool)
	case kindStringList:
		ok = isListOf[string](value)
	case kindNumberMap:
		entries, isMap := value.(map[string]interface{})
		if !isMap {
			break
		}
		for key, entry := range entries {
			if _, isNumber := entry.(float64); !isNumber {
				return fmt.Errorf("%s.%s must be a number", name, key)
			}
		}
		ok = true
	case kindObject:
		section, isMap := value.(map[string]interface{})
		if !isMap {
			break
		}
		return validateConfigMap(section, f.nested, name+".")
	}
	if !ok {
		return fmt.Errorf("%s must be %s", name, f.kind.describe())
	}
	return nil
}

func isListOf[T any](value interface{}) bool {
	list, ok := value.([]interface{})
	if !ok {
		return false
	}
	for _, item := range list {
		if _, ok := item.(T); !ok {
			return false
		}
	}
	return true
}

const configSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "leanagent config",
  "type": "object",
  "properties": {
    "api_key": { "type": "string" },
    "api_url": { "type": "string" },
    "model": { "type": "string" },
    "temperature": { "type": "number" },
    "max_tokens": { "type": "number" },
    "max_steps": { "type": "number" },
    "task_file": { "type": "string" },
    "shell": { "type": "string" },
    "search_backend": { "type": "string", "enum": ["auto", "rg", "grep"] },
    "tools": {
      "type": "object",
      "properties": {
        "allow": { "type": "array", "items": { "type": "string" } },
        "ask": { "type": "array", "items": { "type": "string" } },
        "deny": { "type": "array", "items": { "type": "string" } },
        "require_confirmation": { "type": "array", "items": { "type": "string" } }
      }
    },
    "tool_limits": {
      "type": "object",
      "properties": {
        "max_file_size_bytes": { "type": "number" }
      }
    },
    "tool_path_whitelist": { "type": "array", "items": { "type": "string" } },
    "tool_rate_limits": {
      "type": "object",
      "properties": {
        "default_per_minute": { "type": "number" },
        "per_tool": { "type": "object", "additionalProperties": { "type": "number" } },
        "cooldown_seconds": { "type": "object", "additionalProperties": { "type": "number" } }
      }
    },
    "tool_timeouts": {
      "type": "object",
      "properties": {
        "default_seconds": { "type": "number" },
        "per_tool_seconds": { "type": "object", "additionalProperties": { "type": "number" } }
      }
    },
    "tool_output_filters": {
      "type": "object",
      "properties": {
        "max_chars": { "type": "number" },
        "strip_ansi": { "type": "boolean" },
        "strip_control": { "type": "boolean" }
      }
    }
  }
}`

const exampleConfigJSON = `{
  "api_key": "...",
  "api_url": "https://generativelanguage.googleapis.com/v1beta/openai/",
  "model": "gemini-2.5-pro",
  "max_steps": 50,
  "task_file": "ring.md",
  "tools": {
    "ask": ["run_shell_command", "kill_background_process"]
  },
  "tool_timeouts": {
    "per_tool_seconds": { "run_shell_command": 600, "grep": 60 }
  }
}`
