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
	"os"
	"path/filepath"

	"github.com/nuclio/taskworker/pkg/storage"

	"github.com/imdario/mergo"
	"github.com/mitchellh/mapstructure"
	"github.com/nuclio/errors"
)

type Configuration struct {
	RootPath      string
	DirectoryMode uint32
}

func NewConfiguration(storageConfiguration *storage.Configuration) (*Configuration, error) {
	newConfiguration := Configuration{}

	// parse attributes
	if err := mapstructure.Decode(storageConfiguration.Attributes, &newConfiguration); err != nil {
		return nil, errors.Wrap(err, "Failed to decode attributes")
	}

	if err := mergo.Merge(&newConfiguration, getDefaultConfiguration()); err != nil {
		return nil, errors.Wrap(err, "Failed to apply defaults")
	}

	return &newConfiguration, nil
}

func getDefaultConfiguration() Configuration {
	return Configuration{
		RootPath:      filepath.Join(os.TempDir(), "taskworker-storage"),
		DirectoryMode: 0755,
	}
}
