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

package loggersink

import (
	"strings"

	"github.com/nuclio/taskworker/pkg/registry"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
)

// Configuration describes one logger sink
type Configuration struct {
	Kind       string
	Level      string
	Encoding   string
	Attributes map[string]interface{}
}

// Factory creates a logger writing to some sink
type Factory interface {
	Create(name string, configuration *Configuration) (logger.Logger, error)
}

type Registry struct {
	*registry.Registry[Factory]
}

// global singleton
var RegistrySingleton = Registry{
	Registry: registry.NewRegistry[Factory]("loggersink"),
}

func (r *Registry) NewLoggerSink(kind string, name string, configuration *Configuration) (logger.Logger, error) {
	factory, err := r.Get(kind)
	if err != nil {
		return nil, errors.Wrapf(err, "Unknown logger sink kind: %s", kind)
	}

	return factory.Create(name, configuration)
}

// ParseLevel maps worker log level names to logger levels. "off" only lets errors through
func ParseLevel(level string) nucliozap.Level {
	switch strings.ToLower(level) {
	case "info":
		return nucliozap.InfoLevel
	case "warn", "warning":
		return nucliozap.WarnLevel
	case "error", "off":
		return nucliozap.ErrorLevel
	default:
		return nucliozap.DebugLevel
	}
}
