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

package main

import (
	"os"

	"github.com/nuclio/taskworker/pkg/builtin"
	"github.com/nuclio/taskworker/pkg/cmdrunner"
	"github.com/nuclio/taskworker/pkg/task"
	"github.com/nuclio/taskworker/pkg/taskworker/command"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

func registerTasks(loggerInstance logger.Logger, registry *task.Registry) error {
	shellRunner, err := cmdrunner.NewShellRunner(loggerInstance)
	if err != nil {
		return errors.Wrap(err, "Failed to create shell runner")
	}

	return builtin.Register(registry, shellRunner)
}

func main() {
	if err := command.NewRootCommandeer(registerTasks).Execute(); err != nil {
		errors.PrintErrorStack(os.Stderr, err, 5)

		os.Exit(1)
	}
}
