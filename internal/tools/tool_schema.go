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
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/567-labs/instructor-go/pkg/instructor"
)

// schemaCache maps an argument struct type to its marshaled parameters.
var schemaCache sync.Map

// toolParameters returns the JSON schema instructor generates for the
// argument struct T. Each call gets its own map. It panics when T cannot be
// described, since tool argument types are fixed at compile time.
func toolParameters[T any]() map[string]interface{} {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	raw, err := schemaJSON(t)
	if err != nil {
		panic(fmt.Sprintf("tool schema for %s: %v", t, err))
	}
	var params map[string]interface{}
	if err := json.Unmarshal(raw, &params); err != nil {
		panic(fmt.Sprintf("tool schema for %s: %v", t, err))
	}
	return params
}

func schemaJSON(t reflect.Type) ([]byte, error) {
	if cached, ok := schemaCache.Load(t); ok {
		return cached.([]byte), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("arguments must be a struct, got %s", t.Kind())
	}

	schema, err := instructor.NewSchema(t)
	if err != nil {
		return nil, err
	}
	for _, fn := range schema.Functions {
		if fn.Name != t.Name() {
			continue
		}
		raw, err := json.Marshal(fn.Parameters)
		if err != nil {
			return nil, err
		}
		schemaCache.Store(t, raw)
		return raw, nil
	}
	return nil, fmt.Errorf("no schema definition named %q", t.Name())
}
