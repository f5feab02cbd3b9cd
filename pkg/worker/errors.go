/*
Copyright 2023 The Nuclio Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package worker

import (
	"fmt"
	"time"

	"github.com/nuclio/errors"
)

// exit codes reported to the master
const (
	ExitCodeSuccess  = 0
	ExitCodeFailure  = 1
	ExitCodeTimedOut = 2
)

// ParameterDecodeError is returned for a malformed wire field
type ParameterDecodeError struct {
	Index  int
	Field  string
	Value  string
	Reason string
}

func (pde *ParameterDecodeError) Error() string {
	return fmt.Sprintf("Failed to decode parameter %d: invalid %s %q: %s", pde.Index, pde.Field, pde.Value, pde.Reason)
}

// TimedOutError is returned when a task exceeds its deadline
type TimedOutError struct {
	Timeout time.Duration
}

func (toe *TimedOutError) Error() string {
	return fmt.Sprintf("Task timed out after %s", toe.Timeout)
}

// UserCallError wraps anything that went wrong inside the task entrypoint
type UserCallError struct {
	Err        error
	StackTrace string
}

func (uce *UserCallError) Error() string {
	return fmt.Sprintf("Task call failed: %s", uce.Err.Error())
}

// IsParameterDecodeError returns true if err was caused by a malformed wire field
func IsParameterDecodeError(err error) bool {
	_, isParameterDecodeError := errors.RootCause(err).(*ParameterDecodeError)
	return isParameterDecodeError
}

func newParameterDecodeError(index int, field string, value string, reason string) error {
	return &ParameterDecodeError{
		Index:  index,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}
