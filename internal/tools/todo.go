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
	"sync"

	apperrors "leanagent/internal/errors"
)

// TodoStatus is the lifecycle state of a todo item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

// ParseTodoStatus validates a raw status string.
func ParseTodoStatus(raw string) (TodoStatus, error) {
	switch status := TodoStatus(raw); status {
	case TodoPending, TodoInProgress, TodoCompleted:
		return status, nil
	}
	return "", invalidArgumentf("unknown todo status %q (want pending, in_progress or completed)", raw)
}

// TodoItem is one entry of the agent's working plan.
type TodoItem struct {
	Content    string     `json:"content"`
	Status     TodoStatus `json:"status"`
	ActiveForm string     `json:"activeForm"`
}

// TodoList is an ordered, in-memory todo collection. Items are addressed by
// their position; nothing is ever removed individually, so an index stays
// valid until Clear. Safe for concurrent use.
type TodoList struct {
	mu    sync.Mutex
	items []TodoItem
}

// NewTodoList returns an empty list.
func NewTodoList() *TodoList {
	return &TodoList{}
}

// Add appends a pending item whose active form starts out as its content.
func (l *TodoList) Add(content string) TodoItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	item := TodoItem{
		Content:    content,
		Status:     TodoPending,
		ActiveForm: content,
	}
	l.items = append(l.items, item)
	return item
}

// List returns a copy of all items, or only those with the given status.
func (l *TodoList) List(status *TodoStatus) []TodoItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]TodoItem, 0, len(l.items))
	for _, item := range l.items {
		if status != nil && item.Status != *status {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Update changes the provided fields of the item at index.
func (l *TodoList) Update(index int, status *TodoStatus, activeForm *string) (TodoItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.items) {
		return TodoItem{}, apperrors.Newf(apperrors.CodeNotFound, "Todo index %d out of range (have %d items)", index, len(l.items))
	}
	if status != nil {
		l.items[index].Status = *status
	}
	if activeForm != nil {
		l.items[index].ActiveForm = *activeForm
	}
	return l.items[index], nil
}

// Clear removes every item.
func (l *TodoList) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = nil
}

// Len reports the number of items.
func (l *TodoList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}
