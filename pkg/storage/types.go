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

package storage

import (
	"github.com/nuclio/taskworker/pkg/task"

	"github.com/nuclio/logger"
)

// Storage is a persistent object backend
type Storage interface {

	// Init prepares the backend. configPath is the storage configuration the master passed
	Init(configPath string) error

	// Finish releases the backend
	Finish() error

	// GetByID fetches a persistent object. If target is not nil the object is decoded into it
	GetByID(key string, target interface{}) (interface{}, error)

	// TaskContext makes the parameters of a task storage aware for the duration of its call.
	// The returned function ends the context
	TaskContext(loggerInstance logger.Logger, parameters []*task.Parameter, configPath string) (ReleaseFunc, error)
}

// ReleaseFunc ends a task context. An aborted context (the call timed out or was cancelled)
// must not write its objects back, the abandoned call may still be mutating them
type ReleaseFunc func(aborted bool) error

// WorkerHooks is implemented by backends that need to prepare every pool worker
type WorkerHooks interface {
	InitWorkerPostFork() error
	FinishWorkerPostFork() error
}

// Persistent is implemented by objects that live in a storage backend
type Persistent interface {
	GetID() string
}

// IsPersistent returns true if object is stored in a backend
func IsPersistent(object interface{}) bool {
	persistent, isPersistent := object.(Persistent)
	return isPersistent && persistent.GetID() != ""
}

// Configuration is the content of a storage configuration file
type Configuration struct {
	Kind       string                 `json:"kind,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Creator creates a storage backend of some kind
type Creator interface {
	Create(parentLogger logger.Logger, configuration *Configuration) (Storage, error)
}

// Object can be embedded by task types that may live in a backend
type Object struct {
	ID string `json:"id,omitempty" msgpack:"id,omitempty"`
}

func (o *Object) GetID() string {
	return o.ID
}
