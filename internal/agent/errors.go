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
	"errors"
	"fmt"

	apperrors "leanagent/internal/errors"
)

// ErrStepLimit is returned when the model keeps requesting tools past the
// configured number of turns.
var ErrStepLimit = errors.New("agent step limit reached")

var errNoChoices = errors.New("response contained no choices")

// APIError represents an error from the chat completion API.
type APIError struct {
	Operation string
	Err       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error during %s: %v", e.Operation, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, apperrors.ErrAPI) match API failures.
func (e *APIError) Is(target error) bool {
	return target == apperrors.ErrAPI
}
