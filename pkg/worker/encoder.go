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
	"strconv"
	"strings"

	"github.com/nuclio/taskworker/pkg/task"
)

// EncodeEndTask builds the end of task message for an outcome. Failed outcomes carry only the
// exit code. Successful ones carry the slot count the master expects (results, plus one for the
// callee and one for the return value when declared) followed by type/value pairs
func EncodeEndTask(jobID string, command *Command, outcome *Outcome) string {
	fields := []string{EndTaskTag, jobID, strconv.Itoa(outcome.ExitCode)}

	if outcome.ExitCode != ExitCodeSuccess {
		return strings.Join(fields, " ")
	}

	slotCount := len(outcome.ResultTypes)
	if command.HasTarget {
		slotCount++
	}

	if command.HasReturn() {
		slotCount++
	}

	fields = append(fields, strconv.Itoa(slotCount))

	for resultIdx, resultType := range outcome.ResultTypes {
		fields = append(fields, resultType.Code(), FormatValue(outcome.ResultValues[resultIdx]))
	}

	return strings.Join(fields, " ")
}

// EncodeFailure builds the end of task message for a task that could not be run
func EncodeFailure(jobID string) string {
	return strings.Join([]string{EndTaskTag, jobID, strconv.Itoa(ExitCodeFailure)}, " ")
}

// FormatValue renders a result value as a single wire token
func FormatValue(value interface{}) string {
	switch typedValue := value.(type) {
	case nil:
		return NullToken
	case string:
		return typedValue
	case bool:
		return strconv.FormatBool(typedValue)
	case float64:
		return strconv.FormatFloat(typedValue, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typedValue), 'g', -1, 32)
	case task.ParameterType:
		return typedValue.Code()
	case fmt.Stringer:
		return typedValue.String()
	}

	return fmt.Sprint(value)
}
