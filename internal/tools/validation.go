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
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "leanagent/internal/errors"
)

// ValidationRule checks tool arguments and returns an error if invalid.
type ValidationRule func(args map[string]interface{}) error

var argValidator = newArgValidator()

func newArgValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateToolCall validates a tool call before execution.
func (r *Registry) ValidateToolCall(name, argsJSON string) *ToolResult {
	tool, ok := r.getTool(name)
	if !ok {
		return invalidToolResult(name, fmt.Errorf("%w: tool %q not found", ErrToolNotFound, name))
	}

	args, err := parseToolArgs(argsJSON)
	if err != nil {
		return invalidToolResult(name, apperrors.Wrap(apperrors.CodeInvalidArguments, "invalid tool arguments", err))
	}

	if err := tool.Validate(args); err != nil {
		return invalidToolResult(name, err)
	}

	return nil
}

func invalidToolResult(name string, err error) *ToolResult {
	return &ToolResult{
		Function: name,
		Result:   fmt.Sprintf("Error: %v", err),
		Error:    err,
	}
}

func parseToolArgs(argsJSON string) (map[string]interface{}, error) {
	args := map[string]interface{}{}
	if strings.TrimSpace(argsJSON) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// unmarshalAndValidate decodes loosely typed tool arguments into T and runs
// its `validate` struct tags. Errors name the offending JSON field.
func unmarshalAndValidate[T any](args map[string]interface{}) (T, error) {
	var out T
	if args == nil {
		args = map[string]interface{}{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return out, invalidArgumentf("arguments are not valid JSON: %v", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return out, invalidArgumentf("missing or invalid '%s' parameter: expected %s", typeErr.Field, typeErr.Type)
		}
		return out, invalidArgumentf("invalid arguments: %v", err)
	}
	if err := argValidator.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return out, invalidArgumentf("missing or invalid '%s' parameter (%s)", fe.Field(), describeFieldError(fe))
		}
		return out, invalidArgumentf("%v", err)
	}
	return out, nil
}

// ValidateAs builds a rule that decodes and validates arguments as T.
func ValidateAs[T any]() ValidationRule {
	return func(args map[string]interface{}) error {
		_, err := unmarshalAndValidate[T](args)
		return err
	}
}

func describeFieldError(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
}

func invalidArgumentf(format string, args ...interface{}) error {
	return apperrors.Newf(apperrors.CodeInvalidArguments, format, args...)
}

// ChainValidation runs rules in order until the first error.
func ChainValidation(rules ...ValidationRule) ValidationRule {
	return func(args map[string]interface{}) error {
		for _, rule := range rules {
			if rule == nil {
				continue
			}
			if err := rule(args); err != nil {
				return err
			}
		}
		return nil
	}
}

// RequireStringArg ensures a string argument is present and non-empty.
func RequireStringArg(key, message string) ValidationRule {
	return func(args map[string]interface{}) error {
		value, ok := args[key]
		if !ok || value == nil {
			return invalidArgumentf("%s", message)
		}
		str, ok := value.(string)
		if !ok || strings.TrimSpace(str) == "" {
			return invalidArgumentf("%s", message)
		}
		return nil
	}
}

// RequireArg ensures key is present and not null. Empty values are accepted.
func RequireArg(key string) ValidationRule {
	return func(args map[string]interface{}) error {
		if value, ok := args[key]; !ok || value == nil {
			return invalidArgumentf("missing '%s' parameter", key)
		}
		return nil
	}
}
