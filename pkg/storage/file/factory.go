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

package file

import (
	"github.com/nuclio/taskworker/pkg/storage"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

type factory struct{}

func (f *factory) Create(parentLogger logger.Logger, configuration *storage.Configuration) (storage.Storage, error) {
	fileConfiguration, err := NewConfiguration(configuration)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create file storage configuration")
	}

	return NewStorage(parentLogger, fileConfiguration)
}

// register factory
func init() {
	storage.RegistrySingleton.Register("file", &factory{})
}
