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
	"github.com/nuclio/taskworker/pkg/registry"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

type Registry struct {
	*registry.Registry[Creator]
}

// global singleton
var RegistrySingleton = Registry{
	Registry: registry.NewRegistry[Creator]("storage"),
}

// NewStorage creates and initializes the backend a storage configuration file names. A
// configuration path of "null" or "" means storage is disabled and returns nil
func (r *Registry) NewStorage(parentLogger logger.Logger, configPath string) (Storage, error) {
	if configPath == "" || configPath == "null" {
		return nil, nil
	}

	configuration, err := ReadConfigurationFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read storage configuration")
	}

	creator, err := r.Get(configuration.Kind)
	if err != nil {
		return nil, errors.Wrapf(err, "Unknown storage kind: %s", configuration.Kind)
	}

	storageInstance, err := creator.Create(parentLogger, configuration)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create %s storage", configuration.Kind)
	}

	if err := storageInstance.Init(configPath); err != nil {
		return nil, errors.Wrapf(err, "Failed to initialize %s storage", configuration.Kind)
	}

	return storageInstance, nil
}
