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
	"context"
	"os/signal"
	"syscall"

	"github.com/nuclio/taskworker/pkg/storage"
	"github.com/nuclio/taskworker/pkg/worker"

	"github.com/nuclio/errors"
	"github.com/rs/xid"
	"github.com/spf13/cobra"
)

type runCommandeer struct {
	cmd            *cobra.Command
	rootCommandeer *RootCommandeer
}

func newRunCommandeer(rootCommandeer *RootCommandeer) *runCommandeer {
	commandeer := &runCommandeer{
		rootCommandeer: rootCommandeer,
	}

	cmd := &cobra.Command{
		Use:   "run tracing task_id log_level storage_conf method_type path method timeout num_slaves [slaves...] computing_units has_target return_type return_length num_params [params...]",
		Short: "Run a single task and exit",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {

			// initialize root at the level the master asked for
			if err := rootCommandeer.initialize(args[2]); err != nil {
				return errors.Wrap(err, "Failed to initialize root")
			}

			return commandeer.run(cmd, args)
		},
	}

	// parameters may start with a dash
	cmd.Flags().SetInterspersed(false)

	commandeer.cmd = cmd

	return commandeer
}

func (r *runCommandeer) run(cmd *cobra.Command, args []string) error {
	loggerInstance := r.rootCommandeer.loggerInstance

	command, err := worker.NewCommandParser(worker.NewCodec(loggerInstance)).ParseArguments(args)
	if err != nil {
		return errors.Wrap(err, "Failed to parse task")
	}

	storageInstance, err := storage.RegistrySingleton.NewStorage(loggerInstance, command.StorageConf)
	if err != nil {
		return errors.Wrap(err, "Failed to create storage")
	}

	if storageInstance != nil {
		defer func() {
			if err := storageInstance.Finish(); err != nil {
				loggerInstance.WarnWith("Failed to finish storage", "err", err.Error())
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	invoker := worker.NewInvoker(loggerInstance, r.rootCommandeer.registry, storageInstance)

	outcome := invoker.Invoke(ctx, command, &worker.InvokeOptions{
		Logger:      loggerInstance,
		Stdout:      cmd.OutOrStdout(),
		Stderr:      cmd.ErrOrStderr(),
		ProcessName: "taskworker-" + xid.New().String(),
	})

	loggerInstance.DebugWith("Task outcome",
		"taskID", command.TaskID,
		"response", worker.EncodeEndTask(command.TaskID, command, outcome))

	if outcome.ExitCode != worker.ExitCodeSuccess {
		return errors.Wrapf(outcome.Err, "Task %s finished with exit code %d", command.TaskID, outcome.ExitCode)
	}

	return nil
}
