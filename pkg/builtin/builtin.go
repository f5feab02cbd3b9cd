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
	"github.com/nuclio/taskworker/pkg/cmdrunner"
	"github.com/nuclio/taskworker/pkg/serializer"
	"github.com/nuclio/taskworker/pkg/task"

	"github.com/nuclio/errors"
	"github.com/samber/lo"
)

// Path is the module path builtin functions are registered under
const Path = "taskworker.builtin"

// Register adds the builtin tasks to registry. Shell tasks run through runner
func Register(registry *task.Registry, runner cmdrunner.CmdRunner) error {
	shellTask := &shell{runner: runner}

	for _, definition := range []struct {
		method     string
		kind       task.Kind
		entrypoint task.Entrypoint
		newTarget  func() interface{}
		io         bool
	}{
		{method: "add", kind: task.KindFunction, entrypoint: add},
		{method: "echo", kind: task.KindFunction, entrypoint: echo, io: true},
		{method: "sleep", kind: task.KindFunction, entrypoint: sleep},
		{method: "shell", kind: task.KindFunction, entrypoint: shellTask.run},
		{method: "create", kind: task.KindMethod, entrypoint: createCounter, newTarget: newCounter},
		{method: "increment", kind: task.KindMethod, entrypoint: incrementCounter, newTarget: newCounter},
		{method: "get", kind: task.KindMethod, entrypoint: getCounter, newTarget: newCounter},
	} {
		path := Path
		if definition.kind == task.KindMethod {
			path = CounterPath
		}

		coreElementBuilder := task.NewCoreElementBuilder(path + "." + definition.method)

		if err := coreElementBuilder.SetImplementationSignature(path + "." + definition.method); err != nil {
			return errors.Wrap(err, "Failed to set implementation signature")
		}

		if err := coreElementBuilder.AddConstraint("ComputingUnits", "1"); err != nil {
			return errors.Wrap(err, "Failed to add constraint")
		}

		if err := coreElementBuilder.SetIO(definition.io); err != nil {
			return errors.Wrap(err, "Failed to set IO")
		}

		if err := registry.Register(&task.Definition{
			Path:       path,
			Method:     definition.method,
			Kind:       definition.kind,
			Entrypoint: definition.entrypoint,
			NewTarget:  definition.newTarget,
		}, coreElementBuilder); err != nil {
			return errors.Wrapf(err, "Failed to register %s.%s", path, definition.method)
		}
	}

	return nil
}

// invocation splits the parameters of a call into the callee, the arguments and the return
// slots the master declared
type invocation struct {
	context   *task.Context
	callee    *task.Parameter
	arguments []*task.Parameter
	returns   []*task.Parameter
}

func newInvocation(context *task.Context, parameters []*task.Parameter, hasCallee bool) (*invocation, error) {
	split := &invocation{
		context: context,
	}

	if hasCallee {
		if len(parameters) == 0 {
			return nil, errors.New("Expected a callee")
		}

		split.callee = parameters[0]
		parameters = parameters[1:]
	}

	if context.ReturnLength > len(parameters) {
		return nil, errors.Errorf("Expected %d return slots, got %d parameters", context.ReturnLength, len(parameters))
	}

	split.arguments = parameters[:len(parameters)-context.ReturnLength]
	split.returns = parameters[len(parameters)-context.ReturnLength:]

	return split, nil
}

// setReturn serializes value into the file of the first return slot, if one was declared
func (i *invocation) setReturn(value interface{}) error {
	if len(i.returns) == 0 {
		return nil
	}

	returnParameter := i.returns[0]
	if returnParameter.FileName == "" {
		return errors.Errorf("Return slot %s has no file", returnParameter.Name)
	}

	if err := serializer.SerializeToFile(value, returnParameter.FileName); err != nil {
		return errors.Wrapf(err, "Failed to write return value to %s", returnParameter.FileName)
	}

	return nil
}

// output reports the arguments back unchanged
func (i *invocation) output(targetUpdatePolicy task.TargetUpdatePolicy) *task.Output {
	return &task.Output{
		Types: task.GetTypes(i.arguments),
		Values: lo.Map(i.arguments, func(argument *task.Parameter, _ int) interface{} {
			return argument.GetValue()
		}),
		TargetUpdatePolicy: targetUpdatePolicy,
	}
}
