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
	"github.com/nuclio/taskworker/pkg/storage"
	"github.com/nuclio/taskworker/pkg/task"

	"github.com/nuclio/errors"
)

// CounterPath is the class path Counter methods are registered under
const CounterPath = Path + ".Counter"

// Counter is a callee that lives in a file or in a storage backend
type Counter struct {
	storage.Object
	Value int64 `json:"value" msgpack:"value"`
}

func newCounter() interface{} {
	return &Counter{}
}

// createCounter is class scoped. It returns a counter holding its first argument
func createCounter(context *task.Context, parameters []*task.Parameter, types []task.ParameterType) (interface{}, error) {
	call, err := newInvocation(context, parameters, false)
	if err != nil {
		return nil, err
	}

	counter := &Counter{}

	if len(call.arguments) > 0 {
		if counter.Value, err = toInt64(call.arguments[0].GetValue()); err != nil {
			return nil, errors.Wrap(err, "Invalid initial value")
		}
	}

	if err := call.setReturn(counter); err != nil {
		return nil, err
	}

	return call.output(task.TargetUpdatePolicyNone), nil
}

// incrementCounter adds its argument, or 1, to the callee and returns the new value
func incrementCounter(context *task.Context, parameters []*task.Parameter, types []task.ParameterType) (interface{}, error) {
	call, counter, err := newCounterInvocation(context, parameters)
	if err != nil {
		return nil, err
	}

	increment := int64(1)
	if len(call.arguments) > 0 {
		if increment, err = toInt64(call.arguments[0].GetValue()); err != nil {
			return nil, errors.Wrap(err, "Invalid increment")
		}
	}

	counter.Value += increment

	context.Logger.DebugWith("Incremented counter", "id", counter.GetID(), "value", counter.Value)

	if err := call.setReturn(counter.Value); err != nil {
		return nil, err
	}

	return call.output(task.TargetUpdatePolicyInOut), nil
}

// getCounter returns the callee's value without modifying it
func getCounter(context *task.Context, parameters []*task.Parameter, types []task.ParameterType) (interface{}, error) {
	call, counter, err := newCounterInvocation(context, parameters)
	if err != nil {
		return nil, err
	}

	if err := call.setReturn(counter.Value); err != nil {
		return nil, err
	}

	return call.output(task.TargetUpdatePolicyNone), nil
}

func newCounterInvocation(context *task.Context, parameters []*task.Parameter) (*invocation, *Counter, error) {
	call, err := newInvocation(context, parameters, true)
	if err != nil {
		return nil, nil, err
	}

	counter, isCounter := call.callee.Content.(*Counter)
	if !isCounter {
		return nil, nil, errors.Errorf("Expected a counter callee, got %T", call.callee.Content)
	}

	return call, counter, nil
}

func toInt64(value interface{}) (int64, error) {
	switch typedValue := value.(type) {
	case int:
		return int64(typedValue), nil
	case int64:
		return typedValue, nil
	}

	return 0, errors.Errorf("Expected an integer, got %T", value)
}
