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

package command

import (
	"github.com/nuclio/taskworker/pkg/loggersink"
	"github.com/nuclio/taskworker/pkg/task"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/spf13/cobra"

	// load logger sinks
	_ "github.com/nuclio/taskworker/pkg/loggersink/file"
	_ "github.com/nuclio/taskworker/pkg/loggersink/stdout"

	// load storage backends
	_ "github.com/nuclio/taskworker/pkg/storage/file"
)

// Registrar adds the tasks a worker can execute to a registry
type Registrar func(loggerInstance logger.Logger, registry *task.Registry) error

type RootCommandeer struct {
	loggerInstance logger.Logger
	cmd            *cobra.Command
	registrar      Registrar
	registry       *task.Registry
	logLevel       string
	logFilePath    string
}

func NewRootCommandeer(registrar Registrar) *RootCommandeer {
	commandeer := &RootCommandeer{
		registrar: registrar,
	}

	cmd := &cobra.Command{
		Use:           "taskworker [command]",
		Short:         "Executes tasks on behalf of a runtime master",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&commandeer.logLevel,
		"log-level",
		"l",
		"",
		"Logger level - \"debug\", \"info\", \"warning\", \"error\" or \"off\" (overrides the level the master passes)")

	cmd.PersistentFlags().StringVarP(&commandeer.logFilePath,
		"log-file",
		"",
		"",
		"Also write the worker log to this file, rotating it as it grows")

	// add children
	cmd.AddCommand(
		newRunCommandeer(commandeer).cmd,
		newPiperCommandeer(commandeer).cmd,
		newTasksCommandeer(commandeer).cmd,
		newVersionCommandeer(commandeer).cmd,
	)

	commandeer.cmd = cmd

	return commandeer
}

// Execute uses os.Args to execute the command
func (rc *RootCommandeer) Execute() error {
	return rc.cmd.Execute()
}

// GetCmd returns the underlying cobra command
func (rc *RootCommandeer) GetCmd() *cobra.Command {
	return rc.cmd
}

// initialize creates the logger at defaultLogLevel, unless a level was given explicitly, and
// builds the task registry
func (rc *RootCommandeer) initialize(defaultLogLevel string) error {
	var err error

	rc.loggerInstance, err = rc.createLogger(defaultLogLevel)
	if err != nil {
		return errors.Wrap(err, "Failed to create logger")
	}

	rc.registry = task.NewRegistry()

	if rc.registrar != nil {
		if err := rc.registrar(rc.loggerInstance, rc.registry); err != nil {
			return errors.Wrap(err, "Failed to register tasks")
		}
	}

	rc.loggerInstance.DebugWith("Registered tasks", "numTasks", len(rc.registry.GetDefinitions()))

	return nil
}

func (rc *RootCommandeer) createLogger(defaultLogLevel string) (logger.Logger, error) {
	logLevel := rc.logLevel
	if logLevel == "" {
		logLevel = defaultLogLevel
	}

	configurations := []loggersink.Configuration{
		{
			Kind:  "stdout",
			Level: logLevel,
		},
	}

	if rc.logFilePath != "" {
		configurations = append(configurations, loggersink.Configuration{
			Kind:  "file",
			Level: logLevel,
			Attributes: map[string]interface{}{
				"filePath": rc.logFilePath,
			},
		})
	}

	return loggersink.CreateLogger("taskworker", configurations)
}
