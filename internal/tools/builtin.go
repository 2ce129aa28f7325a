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
	"fmt"
	"time"
)

type addTodoArgs struct {
	Content string `json:"content" jsonschema:"description=The content of the todo item"`
}

type listTodosArgs struct {
	Status string `json:"status,omitempty" jsonschema:"description=Only list todos with this status,enum=pending,enum=in_progress,enum=completed" validate:"omitempty,oneof=pending in_progress completed"`
}

type updateTodoArgs struct {
	Index      *int   `json:"index" jsonschema:"description=Zero-based index of the todo item" validate:"required"`
	Status     string `json:"status,omitempty" jsonschema:"description=New status,enum=pending,enum=in_progress,enum=completed" validate:"omitempty,oneof=pending in_progress completed"`
	ActiveForm string `json:"activeForm,omitempty" jsonschema:"description=New active form of the description"`
}

type runShellCommandArgs struct {
	Command string   `json:"command" jsonschema:"description=The shell command to run,minLength=1" validate:"required"`
	Cwd     string   `json:"cwd,omitempty" jsonschema:"description=Working directory to run the command in"`
	Timeout *float64 `json:"timeout,omitempty" jsonschema:"description=Timeout for the command in seconds" validate:"omitempty,gt=0"`
	RunInBg bool     `json:"run_in_bg,omitempty" jsonschema:"description=Start the command in the background and return its PID immediately"`
}

type processArgs struct {
	PID int `json:"pid" jsonschema:"description=PID returned when the background command was started" validate:"required,gt=0"`
}

type grepToolArgs struct {
	Pattern    string `json:"pattern" jsonschema:"description=The regular expression pattern to search for,minLength=1" validate:"required"`
	Path       string `json:"path,omitempty" jsonschema:"description=File or directory to search in (default: current directory)"`
	Glob       string `json:"glob,omitempty" jsonschema:"description=Glob pattern to filter files (e.g. *.lean)"`
	Type       string `json:"type,omitempty" jsonschema:"description=File type to search (ripgrep type names such as go or py)"`
	OutputMode string `json:"output_mode,omitempty" jsonschema:"description=What to print,enum=content,enum=files_with_matches,enum=count" validate:"omitempty,oneof=content files_with_matches count"`
	I          bool   `json:"i,omitempty" jsonschema:"description=Case insensitive search"`
	N          bool   `json:"n,omitempty" jsonschema:"description=Show line numbers"`
	B          *int   `json:"B,omitempty" jsonschema:"description=Lines to show before each match" validate:"omitempty,min=0"`
	A          *int   `json:"A,omitempty" jsonschema:"description=Lines to show after each match" validate:"omitempty,min=0"`
	C          *int   `json:"C,omitempty" jsonschema:"description=Lines to show before and after each match" validate:"omitempty,min=0"`
	HeadLimit  *int   `json:"head_limit,omitempty" jsonschema:"description=Limit output to the first N lines" validate:"omitempty,min=0"`
	Multiline  bool   `json:"multiline,omitempty" jsonschema:"description=Let patterns span lines"`
}

type editArgs struct {
	FilePath   string  `json:"file_path" jsonschema:"description=The absolute path to the file to modify,minLength=1" validate:"required"`
	OldString  *string `json:"old_string" jsonschema:"description=The text to replace" validate:"required"`
	NewString  *string `json:"new_string" jsonschema:"description=The text to replace it with" validate:"required"`
	ReplaceAll bool    `json:"replace_all,omitempty" jsonschema:"description=Replace every occurrence instead of only the first"`
}

type multiEditArgs struct {
	FilePath string          `json:"file_path" validate:"required"`
	Edits    []EditOperation `json:"edits" validate:"required"`
}

type readFileArgs struct {
	FilePath string `json:"file_path" jsonschema:"description=The absolute path to the file to read,minLength=1" validate:"required"`
	Offset   *int   `json:"offset,omitempty" jsonschema:"description=The line number to start reading from (0-indexed)" validate:"omitempty,min=0"`
	Limit    *int   `json:"limit,omitempty" jsonschema:"description=The number of lines to read" validate:"omitempty,min=0"`
}

// emptyParameters is the schema for tools that take no arguments.
func emptyParameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func multiEditParameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"file_path": map[string]interface{}{
				"type":        "string",
				"description": "The absolute path to the file to modify",
				"minLength":   1,
			},
			"edits": map[string]interface{}{
				"type":        "array",
				"description": "Edit operations, applied in order to the result of the previous ones",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"old_string": map[string]interface{}{
							"type":        "string",
							"description": "The text to replace",
						},
						"new_string": map[string]interface{}{
							"type":        "string",
							"description": "The text to replace it with",
						},
						"replace_all": map[string]interface{}{
							"type":        "boolean",
							"description": "Replace every occurrence instead of only the first",
						},
					},
					"required": []string{"old_string", "new_string"},
				},
			},
		},
		"required": []string{"file_path", "edits"},
	}
}

// defineTool builds a tool whose arguments decode into T. Parameters default
// to the schema generated from T.
func defineTool[T any](name, description string, params map[string]interface{}, run func(ctx context.Context, args T) (string, error), rules ...ValidationRule) *ToolDefinition {
	if params == nil {
		params = toolParameters[T]()
	}
	rules = append(rules, ValidateAs[T]())
	return &ToolDefinition{
		NameValue:        name,
		DescriptionValue: description,
		ParametersValue:  params,
		ValidateFunc:     ChainValidation(rules...),
		ExecuteFunc: func(ctx context.Context, raw map[string]interface{}) (string, error) {
			args, err := unmarshalAndValidate[T](raw)
			if err != nil {
				return "", err
			}
			if err := ensureContext(ctx); err != nil {
				return "", err
			}
			return run(ctx, args)
		},
	}
}

func registerBuiltInTools(r *Registry) error {
	defs := []*ToolDefinition{
		defineTool("add_todo",
			"Add a new todo item. It starts out pending.",
			nil, r.addTodo, RequireArg("content")),
		defineTool("list_todos",
			"List all todo items, optionally filtered by status (pending, in_progress, completed).",
			nil, r.listTodos),
		defineTool("update_todo",
			"Update the status or active form of the todo item at index.",
			nil, r.updateTodo),
		defineTool("clear_todos",
			"Clear all todo items.",
			emptyParameters(), r.clearTodos),
		defineTool("run_shell_command",
			"Run a shell command and return its output. Foreground commands return stdout and fail with stderr on a non-zero exit; background commands return their PID.",
			nil, r.runShellCommand),
		defineTool("check_background_process",
			"Report whether a background command is still running, its exit code and the tail of its output.",
			nil, r.checkBackgroundProcess),
		defineTool("kill_background_process",
			"Kill a background command and everything it started.",
			nil, r.killBackgroundProcess),
		defineTool("grep",
			"Search file contents with a regular expression. An empty result means nothing matched.",
			nil, r.grep),
		defineTool("edit",
			"Edit a file by replacing the first occurrence of old_string with new_string, or every occurrence with replace_all.",
			nil, r.edit),
		defineTool("multi_edit",
			"Edit a file by applying multiple edit operations in order, writing the file once.",
			multiEditParameters(), r.multiEdit),
		defineTool("read_file",
			"Read a file with optional line offset and limit. For large files use offset and limit.",
			nil, r.readFile),
	}
	for _, def := range defs {
		if err := r.RegisterTool(def); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) addTodo(_ context.Context, args addTodoArgs) (string, error) {
	return encodeJSON(r.todos.Add(args.Content))
}

func (r *Registry) listTodos(_ context.Context, args listTodosArgs) (string, error) {
	var filter *TodoStatus
	if args.Status != "" {
		status, err := ParseTodoStatus(args.Status)
		if err != nil {
			return "", err
		}
		filter = &status
	}
	return encodeJSON(r.todos.List(filter))
}

func (r *Registry) updateTodo(_ context.Context, args updateTodoArgs) (string, error) {
	var status *TodoStatus
	if args.Status != "" {
		parsed, err := ParseTodoStatus(args.Status)
		if err != nil {
			return "", err
		}
		status = &parsed
	}
	var activeForm *string
	if args.ActiveForm != "" {
		activeForm = &args.ActiveForm
	}
	item, err := r.todos.Update(*args.Index, status, activeForm)
	if err != nil {
		return "", err
	}
	return encodeJSON(item)
}

func (r *Registry) clearTodos(_ context.Context, _ struct{}) (string, error) {
	r.todos.Clear()
	return "All todos cleared.", nil
}

func (r *Registry) runShellCommand(ctx context.Context, args runShellCommandArgs) (string, error) {
	if args.Cwd != "" {
		if err := r.pathRules.Check(args.Cwd); err != nil {
			return "", err
		}
	}
	req := RunRequest{
		Command:    args.Command,
		Cwd:        args.Cwd,
		Background: args.RunInBg,
	}
	if args.Timeout != nil {
		req.Timeout = time.Duration(*args.Timeout * float64(time.Second))
	}
	return r.runner.Run(ctx, req)
}

func (r *Registry) checkBackgroundProcess(_ context.Context, args processArgs) (string, error) {
	status, err := r.processes.Status(args.PID)
	if err != nil {
		return "", err
	}
	return status.String(), nil
}

func (r *Registry) killBackgroundProcess(_ context.Context, args processArgs) (string, error) {
	if err := r.processes.Terminate(args.PID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Process %d killed", args.PID), nil
}

func (r *Registry) grep(ctx context.Context, args grepToolArgs) (string, error) {
	if args.Path != "" {
		if err := r.pathRules.Check(args.Path); err != nil {
			return "", err
		}
	}
	return r.searcher.Search(ctx, SearchRequest{
		Pattern:         args.Pattern,
		Path:            args.Path,
		Glob:            args.Glob,
		Type:            args.Type,
		OutputMode:      args.OutputMode,
		CaseInsensitive: args.I,
		LineNumbers:     args.N,
		Before:          args.B,
		After:           args.A,
		Context:         args.C,
		HeadLimit:       args.HeadLimit,
		Multiline:       args.Multiline,
	})
}

func (r *Registry) edit(ctx context.Context, args editArgs) (string, error) {
	if err := r.pathRules.Check(args.FilePath); err != nil {
		return "", err
	}
	return r.editor.EditOne(ctx, args.FilePath, *args.OldString, *args.NewString, args.ReplaceAll)
}

func (r *Registry) multiEdit(ctx context.Context, args multiEditArgs) (string, error) {
	if err := r.pathRules.Check(args.FilePath); err != nil {
		return "", err
	}
	return r.editor.EditMany(ctx, args.FilePath, args.Edits)
}

func (r *Registry) readFile(ctx context.Context, args readFileArgs) (string, error) {
	if err := r.pathRules.Check(args.FilePath); err != nil {
		return "", err
	}
	return r.reader.Read(ctx, args.FilePath, args.Offset, args.Limit)
}
