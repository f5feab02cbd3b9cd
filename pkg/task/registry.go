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

package task

import (
	"fmt"

	"github.com/nuclio/taskworker/pkg/registry"

	"github.com/nuclio/errors"
)

// Kind tells the invoker how a task is dispatched
type Kind string

const (
	KindFunction Kind = "function"
	KindMethod   Kind = "method"
)

// Entrypoint is the signature every task implements. Parameters are positional; for
// methods with a callee, the callee is parameter 0
type Entrypoint func(context *Context, parameters []*Parameter, types []ParameterType) (interface{}, error)

// Definition binds a module path and method name to an entrypoint
type Definition struct {

	// module path for functions, module.Class path for methods
	Path       string
	Method     string
	Kind       Kind
	Entrypoint Entrypoint

	// allocates an empty callee for a serialized "self" to decode into. When nil the
	// callee decodes into a generic value
	NewTarget func() interface{}

	CoreElement *CoreElement
}

func (d *Definition) GetName() string {
	return definitionName(d.Path, d.Method)
}

// ImportResolutionError is returned when no task is registered under a path and method
type ImportResolutionError struct {
	Path   string
	Method string
}

func (ire *ImportResolutionError) Error() string {
	return fmt.Sprintf("No task registered for %s", definitionName(ire.Path, ire.Method))
}

// Registry holds the task definitions a worker can execute. It is built during startup and
// passed explicitly to whatever executes tasks
type Registry struct {
	definitions *registry.Registry[*Definition]
}

func NewRegistry() *Registry {
	return &Registry{
		definitions: registry.NewRegistry[*Definition]("task"),
	}
}

// Register seals the builder into the definition's core element and adds it
func (r *Registry) Register(definition *Definition, coreElementBuilder *CoreElementBuilder) error {
	if definition.Path == "" || definition.Method == "" {
		return errors.New("Task definition requires a path and a method")
	}

	if definition.Entrypoint == nil {
		return errors.Errorf("Task %s has no entrypoint", definition.GetName())
	}

	switch definition.Kind {
	case KindFunction, KindMethod:
	default:
		return errors.Errorf("Task %s has an invalid kind: %s", definition.GetName(), definition.Kind)
	}

	if coreElementBuilder == nil {
		coreElementBuilder = NewCoreElementBuilder(definition.GetName())
	}

	definition.CoreElement = coreElementBuilder.Seal()

	if err := r.definitions.Add(definition.GetName(), definition); err != nil {
		return errors.Wrap(err, "Failed to register task")
	}

	return nil
}

// Resolve returns the definition registered for a path and method
func (r *Registry) Resolve(path string, method string) (*Definition, error) {
	definition, err := r.definitions.Get(definitionName(path, method))
	if err != nil {
		return nil, &ImportResolutionError{
			Path:   path,
			Method: method,
		}
	}

	return definition, nil
}

// GetDefinitions returns all definitions sorted by name
func (r *Registry) GetDefinitions() []*Definition {
	return r.definitions.GetAll()
}

func definitionName(path string, method string) string {
	return fmt.Sprintf("%s.%s", path, method)
}
