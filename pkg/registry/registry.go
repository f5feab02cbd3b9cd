/*
Copyright 2017 The Nuclio Authors.

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

package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nuclio/errors"
)

var ErrAlreadyRegistered = errors.New("Already registered")
var ErrNotFound = errors.New("Not found in registry")

// Registry maps kinds to registerees of a single type
type Registry[T any] struct {
	className string
	lock      sync.RWMutex
	entries   map[string]T
}

func NewRegistry[T any](className string) *Registry[T] {
	return &Registry[T]{
		className: className,
		entries:   map[string]T{},
	}
}

// Register adds a registeree from a package init() and panics if the kind is taken
func (r *Registry[T]) Register(kind string, registeree T) {
	if err := r.Add(kind, registeree); err != nil {
		panic(fmt.Sprintf("Already registered: %s", kind))
	}
}

// Add adds a registeree, failing if the kind is taken
func (r *Registry[T]) Add(kind string, registeree T) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, found := r.entries[kind]; found {
		return errors.Wrapf(ErrAlreadyRegistered, "%s registry already holds %s", r.className, kind)
	}

	r.entries[kind] = registeree

	return nil
}

func (r *Registry[T]) Get(kind string) (T, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	registeree, found := r.entries[kind]
	if !found {
		return registeree, errors.Wrapf(ErrNotFound, "%s registry has no %s", r.className, kind)
	}

	return registeree, nil
}

// GetKinds returns the registered kinds, sorted
func (r *Registry[T]) GetKinds() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	kinds := make([]string, 0, len(r.entries))
	for kind := range r.entries {
		kinds = append(kinds, kind)
	}

	sort.Strings(kinds)

	return kinds
}

// GetAll returns the registerees ordered by kind
func (r *Registry[T]) GetAll() []T {
	kinds := r.GetKinds()

	r.lock.RLock()
	defer r.lock.RUnlock()

	registerees := make([]T, 0, len(kinds))
	for _, kind := range kinds {
		if registeree, found := r.entries[kind]; found {
			registerees = append(registerees, registeree)
		}
	}

	return registerees
}
