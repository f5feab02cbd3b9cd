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
	"context"
	"io"
	"runtime/debug"
	"strings"
	"time"

	"github.com/nuclio/taskworker/pkg/common"
	"github.com/nuclio/taskworker/pkg/serializer"
	"github.com/nuclio/taskworker/pkg/storage"
	"github.com/nuclio/taskworker/pkg/task"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// Outcome is the result of invoking a task
type Outcome struct {
	ExitCode           int
	ResultTypes        []task.ParameterType
	ResultValues       []interface{}
	TargetUpdatePolicy task.TargetUpdatePolicy
	Duration           time.Duration

	// why the task failed. Never sent to the master
	Err error
}

// InvokeOptions carries what the caller of a task provides besides the command
type InvokeOptions struct {
	Logger      logger.Logger
	Stdout      io.Writer
	Stderr      io.Writer
	ProcessName string
}

// Invoker resolves and calls task entrypoints
type Invoker struct {
	logger         logger.Logger
	registry       *task.Registry
	storage        storage.Storage
	affinityBinder *affinityBinder
}

type callee struct {
	parameter  *task.Parameter
	fileName   string
	persistent bool
}

type callResult struct {
	output interface{}
	err    error
}

// NewInvoker creates an invoker. storageInstance may be nil when persistent storage is disabled
func NewInvoker(parentLogger logger.Logger, registry *task.Registry, storageInstance storage.Storage) *Invoker {
	invokerLogger := parentLogger.GetChild("invoker")

	return &Invoker{
		logger:         invokerLogger,
		registry:       registry,
		storage:        storageInstance,
		affinityBinder: newAffinityBinder(invokerLogger),
	}
}

// Invoke runs the task a command describes. It never fails: every error is classified into
// the outcome's exit code
func (i *Invoker) Invoke(ctx context.Context, command *Command, options *InvokeOptions) *Outcome {
	if options == nil {
		options = &InvokeOptions{}
	}

	if options.Logger == nil {
		options.Logger = i.logger
	}

	startTime := time.Now()

	options.Logger.DebugWith("Invoking task",
		"path", command.Path,
		"method", command.Method,
		"taskID", command.TaskID,
		"timeout", command.TimeoutSeconds,
		"numParameters", command.NumParameters)

	outcome, err := i.invoke(ctx, command, options)
	if err != nil {
		outcome = &Outcome{
			ExitCode: exitCodeFromError(err),
			Err:      err,
		}

		options.Logger.ErrorWith("Task failed",
			"path", command.Path,
			"method", command.Method,
			"taskID", command.TaskID,
			"exitCode", outcome.ExitCode,
			"err", errors.GetErrorStackString(err, 10))

		if userCallError, isUserCallError := errors.RootCause(err).(*UserCallError); isUserCallError &&
			userCallError.StackTrace != "" {
			options.Logger.ErrorWith("Task panicked", "stackTrace", userCallError.StackTrace)
		}
	}

	outcome.Duration = time.Since(startTime)

	options.Logger.DebugWith("Task finished",
		"taskID", command.TaskID,
		"exitCode", outcome.ExitCode,
		"duration", outcome.Duration.String())

	return outcome
}

func (i *Invoker) invoke(ctx context.Context, command *Command, options *InvokeOptions) (*Outcome, error) {
	definition, err := i.registry.Resolve(command.Path, command.Method)
	if err != nil {
		return nil, err
	}

	parameters := append([]*task.Parameter{}, command.Parameters...)

	var target *callee

	if definition.Kind == task.KindMethod && command.HasTarget {
		target, parameters, err = i.materializeCallee(definition, command, parameters)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to materialize callee")
		}
	}

	types := task.GetTypes(parameters)

	// class scoped dispatch without an instance
	if definition.Kind == task.KindMethod && !command.HasTarget {
		types = append(types, task.ParameterTypeNull)
	}

	output, err := i.call(ctx, definition, command, parameters, types, options)
	if err != nil {
		return nil, err
	}

	if target != nil && output.TargetUpdatePolicy.RequiresWriteBack() {
		if err := i.writeBackCallee(target, options.Logger); err != nil {
			return nil, errors.Wrap(err, "Failed to write back callee")
		}
	}

	return &Outcome{
		ExitCode:           ExitCodeSuccess,
		ResultTypes:        output.Types,
		ResultValues:       output.Values,
		TargetUpdatePolicy: output.TargetUpdatePolicy,
	}, nil
}

// materializeCallee removes the callee from the parameters and prepends it as a live object
func (i *Invoker) materializeCallee(definition *task.Definition,
	command *Command,
	parameters []*task.Parameter) (*callee, []*task.Parameter, error) {

	calleeIdx := command.NumParameters - command.ReturnLength - 1
	if calleeIdx < 0 || calleeIdx >= len(parameters) {
		return nil, nil, errors.Errorf("Callee index %d is out of range (%d parameters, %d returns)",
			calleeIdx,
			len(parameters),
			command.ReturnLength)
	}

	calleeParameter := parameters[calleeIdx]

	remainingParameters := make([]*task.Parameter, 0, len(parameters))
	remainingParameters = append(remainingParameters, parameters[:calleeIdx]...)
	remainingParameters = append(remainingParameters, parameters[calleeIdx+1:]...)

	var newTarget interface{}
	if definition.NewTarget != nil {
		newTarget = definition.NewTarget()
	}

	target := &callee{}

	if calleeParameter.GetType() == task.ParameterTypeExternalPSCO {
		if i.storage == nil || !command.StorageEnabled() {
			return nil, nil, errors.Errorf("Callee %s is persistent but storage is disabled", calleeParameter.Key)
		}

		object, err := i.storage.GetByID(calleeParameter.Key, newTarget)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "Failed to get callee %s from storage", calleeParameter.Key)
		}

		target.parameter = task.NewPersistentParameter(calleeParameter.StreamMode,
			calleeParameter.Prefix,
			calleeParameter.Name,
			calleeParameter.Key)
		target.parameter.Content = object
		target.persistent = true
	} else {

		// drop any transport prefix (host:/path)
		fileName := calleeParameter.FileName
		if separatorIdx := strings.LastIndex(fileName, ":"); separatorIdx >= 0 {
			fileName = fileName[separatorIdx+1:]
		}

		object, err := serializer.DeserializeFromFile(fileName, newTarget)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "Failed to deserialize callee from %s", fileName)
		}

		target.parameter = task.NewContentParameter(task.ParameterTypeObject,
			calleeParameter.StreamMode,
			calleeParameter.Prefix,
			calleeParameter.Name,
			object)
		target.fileName = fileName
		target.persistent = storage.IsPersistent(object)
	}

	return target, append([]*task.Parameter{target.parameter}, remainingParameters...), nil
}

func (i *Invoker) writeBackCallee(target *callee, taskLogger logger.Logger) error {
	if target.persistent {
		taskLogger.DebugWith("Callee is persistent, skipping write back", "key", target.parameter.Key)
		return nil
	}

	taskLogger.DebugWith("Writing back callee", "fileName", target.fileName)

	return serializer.SerializeToFile(target.parameter.Content, target.fileName)
}

// call runs the entrypoint under the task deadline. On deadline the call is abandoned and
// reported as timed out; the entrypoint sees its context cancelled
func (i *Invoker) call(ctx context.Context,
	definition *task.Definition,
	command *Command,
	parameters []*task.Parameter,
	types []task.ParameterType,
	options *InvokeOptions) (*task.Output, error) {

	var callCtx context.Context
	var cancel context.CancelFunc

	timeout := time.Duration(command.TimeoutSeconds) * time.Second
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}

	defer cancel()

	resources := command.Resources
	if resources == nil {
		resources = &task.Resources{}
	}

	taskContext := &task.Context{
		Context:           callCtx,
		RuntimeOriginated: true,
		Tracing:           command.Tracing,
		ProcessName:       options.ProcessName,
		StorageConf:       command.StorageConf,
		ReturnLength:      command.ReturnLength,
		Logger:            options.Logger,
		Stdout:            writerOrDiscard(options.Stdout),
		Stderr:            writerOrDiscard(options.Stderr),
		Resources:         resources,
	}

	// the storage context is held on this goroutine so that an abandoned call releases it too
	releaseTaskContext := func(aborted bool) {}
	if i.storage != nil && command.StorageEnabled() {
		release, err := i.storage.TaskContext(taskContext.Logger, parameters, command.StorageConf)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to enter storage task context")
		}

		releaseTaskContext = func(aborted bool) {
			if err := release(aborted); err != nil {
				taskContext.Logger.WarnWith("Failed to leave storage task context",
					"aborted", aborted,
					"err", err.Error())
			}
		}
	}

	resultChan := make(chan callResult, 1)
	go i.runEntrypoint(taskContext, definition, parameters, types, resultChan)

	select {
	case result := <-resultChan:
		releaseTaskContext(false)

		if result.err != nil {
			return nil, result.err
		}

		return interpretOutput(result.output)

	case <-callCtx.Done():
		releaseTaskContext(true)

		if callCtx.Err() == context.DeadlineExceeded {
			return nil, &TimedOutError{Timeout: timeout}
		}

		return nil, errors.Wrap(callCtx.Err(), "Task call was cancelled")
	}
}

func (i *Invoker) runEntrypoint(taskContext *task.Context,
	definition *task.Definition,
	parameters []*task.Parameter,
	types []task.ParameterType,
	resultChan chan<- callResult) {

	var result callResult

	defer func() {
		resultChan <- result
	}()

	defer func() {
		if recoveredErr := recover(); recoveredErr != nil {
			result = callResult{
				err: &UserCallError{
					Err:        common.ErrorFromRecoveredError(recoveredErr),
					StackTrace: string(debug.Stack()),
				},
			}
		}
	}()

	releaseAffinity := i.affinityBinder.bind(taskContext.Resources.BoundCPUs, taskContext.Stderr)
	defer releaseAffinity()

	output, err := definition.Entrypoint(taskContext, parameters, types)
	if err != nil {
		result.err = &UserCallError{Err: err}
		return
	}

	result.output = output
}

// interpretOutput accepts an output, or a list whose first element is an output (a wrapper
// prepending its own results). Only one level is unwrapped
func interpretOutput(rawOutput interface{}) (*task.Output, error) {
	output, err := asOutput(rawOutput)
	if err != nil {
		wrappedOutput, isList := rawOutput.([]interface{})
		if !isList || len(wrappedOutput) == 0 {
			return nil, &UserCallError{Err: err}
		}

		output, err = asOutput(wrappedOutput[0])
		if err != nil {
			return nil, &UserCallError{Err: errors.Wrap(err, "Unexpected first element of wrapped output")}
		}
	}

	if len(output.Types) != len(output.Values) {
		return nil, &UserCallError{
			Err: errors.Errorf("Output has %d types but %d values", len(output.Types), len(output.Values)),
		}
	}

	return output, nil
}

func asOutput(rawOutput interface{}) (*task.Output, error) {
	switch typedOutput := rawOutput.(type) {
	case *task.Output:
		if typedOutput == nil {
			return nil, errors.New("Output is nil")
		}

		return typedOutput, nil
	case task.Output:
		return &typedOutput, nil
	}

	return nil, errors.Errorf("Unexpected output type %T", rawOutput)
}

func exitCodeFromError(err error) int {
	if _, isTimedOut := errors.RootCause(err).(*TimedOutError); isTimedOut {
		return ExitCodeTimedOut
	}

	return ExitCodeFailure
}

func writerOrDiscard(writer io.Writer) io.Writer {
	if writer == nil {
		return io.Discard
	}

	return writer
}
