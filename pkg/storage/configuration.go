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
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/nuclio/errors"
	"sigs.k8s.io/yaml"
)

// ReadConfigurationFile reads a YAML storage configuration. A leading ~ in the path is
// the home directory of the worker's user
func ReadConfigurationFile(configPath string) (*Configuration, error) {
	expandedConfigPath, err := homedir.Expand(configPath)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to expand %s", configPath)
	}

	configurationBytes, err := os.ReadFile(expandedConfigPath)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %s", configPath)
	}

	configuration := Configuration{}
	if err := yaml.Unmarshal(configurationBytes, &configuration); err != nil {
		return nil, errors.Wrapf(err, "Failed to parse %s", configPath)
	}

	if configuration.Kind == "" {
		return nil, errors.Errorf("Storage configuration %s has no kind", configPath)
	}

	if configuration.Attributes == nil {
		configuration.Attributes = map[string]interface{}{}
	}

	return &configuration, nil
}
