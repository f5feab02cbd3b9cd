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

package common

import (
	"fmt"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// ErrorFromRecoveredError turns the value recovered from a panic into an error
func ErrorFromRecoveredError(recoveredError interface{}) error {
	switch typedError := recoveredError.(type) {
	case error:
		return typedError
	case string:
		return errors.New(typedError)
	}

	return errors.New(fmt.Sprintf("Unknown error: %v", recoveredError))
}

// LogPanic logs a recovered panic together with the stack it was raised from
func LogPanic(loggerInstance logger.Logger, actionName string, callStack []byte, recoveredError interface{}) {
	loggerInstance.ErrorWith("Panic caught",
		"actionName", actionName,
		"err", recoveredError,
		"stack", string(callStack))
}
