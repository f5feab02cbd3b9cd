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

package builtin

import (
	"fmt"
	"strings"
	"time"

	"github.com/nuclio/taskworker/pkg/cmdrunner"
	"github.com/nuclio/taskworker/pkg/task"

	"github.com/nuclio/errors"
	"github.com/samber/lo"
)

// add sums its numeric arguments. The sum is a float if any argument is one
func add(context *task.Context, parameters []*task.Parameter, types []task.ParameterType) (interface{}, error) {
	call, err := newInvocation(context, parameters, false)
	if err != nil {
		return nil, err
	}

	var intSum int64
	var floatSum float64
	isFloat := false

	for _, argument := range call.arguments {
		switch value := argument.GetValue().(type) {
		case int:
			intSum += int64(value)
		case int64:
			intSum += value
		case float64:
			floatSum += value
			isFloat = true
		default:
			return nil, errors.Errorf("Cannot add %s parameter %s", argument.GetType(), argument.Name)
		}
	}

	var sum interface{} = intSum
	if isFloat {
		sum = floatSum + float64(intSum)
	}

	context.Logger.DebugWith("Added", "numArguments", len(call.arguments), "sum", sum)

	if err := call.setReturn(sum); err != nil {
		return nil, err
	}

	return call.output(task.TargetUpdatePolicyNone), nil
}

// echo writes its arguments to the task's stdout and returns them as one string
func echo(context *task.Context, parameters []*task.Parameter, types []task.ParameterType) (interface{}, error) {
	call, err := newInvocation(context, parameters, false)
	if err != nil {
		return nil, err
	}

	line := strings.Join(lo.Map(call.arguments, func(argument *task.Parameter, _ int) string {
		return fmt.Sprint(argument.GetValue())
	}), " ")

	if _, err := fmt.Fprintln(context.Stdout, line); err != nil {
		return nil, errors.Wrap(err, "Failed to write to stdout")
	}

	if err := call.setReturn(line); err != nil {
		return nil, err
	}

	return call.output(task.TargetUpdatePolicyNone), nil
}

// sleep waits for the number of seconds its first argument holds, or until the task is cancelled
func sleep(context *task.Context, parameters []*task.Parameter, types []task.ParameterType) (interface{}, error) {
	call, err := newInvocation(context, parameters, false)
	if err != nil {
		return nil, err
	}

	if len(call.arguments) == 0 {
		return nil, errors.New("Expected a duration in seconds")
	}

	var duration time.Duration

	switch seconds := call.arguments[0].GetValue().(type) {
	case int:
		duration = time.Duration(seconds) * time.Second
	case int64:
		duration = time.Duration(seconds) * time.Second
	case float64:
		duration = time.Duration(seconds * float64(time.Second))
	default:
		return nil, errors.Errorf("Invalid duration: %v", seconds)
	}

	select {
	case <-time.After(duration):
	case <-context.Done():
		return nil, errors.Wrap(context.Err(), "Sleep was interrupted")
	}

	return call.output(task.TargetUpdatePolicyNone), nil
}

type shell struct {
	runner cmdrunner.CmdRunner
}

// run runs its first argument as a shell command in the task's execution environment. The
// command's stdout is returned and both streams are copied to the task's
func (s *shell) run(context *task.Context, parameters []*task.Parameter, types []task.ParameterType) (interface{}, error) {
	call, err := newInvocation(context, parameters, false)
	if err != nil {
		return nil, err
	}

	if len(call.arguments) == 0 {
		return nil, errors.New("Expected a command")
	}

	command, isString := call.arguments[0].GetValue().(string)
	if !isString {
		return nil, errors.Errorf("Expected a string command, got %s", call.arguments[0].GetType())
	}

	runOptions := &cmdrunner.RunOptions{
		Environ:           context.Resources.Environ(),
		CaptureOutputMode: cmdrunner.CaptureOutputModeStdout,
	}

	runResult, runErr := s.runner.Run(context, runOptions, "%s", command)

	fmt.Fprint(context.Stdout, runResult.Output) // nolint: errcheck
	fmt.Fprint(context.Stderr, runResult.Stderr) // nolint: errcheck

	if runErr != nil {
		return nil, errors.Wrapf(runErr, "Command exited with %d", runResult.ExitCode)
	}

	if err := call.setReturn(runResult.Output); err != nil {
		return nil, err
	}

	return call.output(task.TargetUpdatePolicyNone), nil
}
