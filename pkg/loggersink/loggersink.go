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
	"io"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
)

// CreateLogger creates a logger writing to all the given sinks
func CreateLogger(name string, configurations []Configuration) (logger.Logger, error) {
	var loggers []logger.Logger

	if len(configurations) == 0 {
		return nil, errors.New("At least one logger sink is required")
	}

	for configurationIdx := range configurations {
		configuration := &configurations[configurationIdx]

		loggerInstance, err := RegistrySingleton.NewLoggerSink(configuration.Kind, name, configuration)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to create logger")
		}

		loggers = append(loggers, loggerInstance)
	}

	// if there's more than one logger, create a mux logger (as it does carry _some_ overhead over a single logger)
	if len(loggers) == 1 {
		return loggers[0], nil
	}

	muxLogger, err := nucliozap.NewMuxLogger(loggers...)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to created mux logger")
	}

	return muxLogger, nil
}

// CreateTaskLogger creates the logger a single task writes to. Everything at level goes to
// out, errors also go to err
func CreateTaskLogger(name string, level nucliozap.Level, out io.Writer, err io.Writer) (logger.Logger, error) {
	outLogger, createErr := nucliozap.NewNuclioZap(name, "console", nil, out, out, level)
	if createErr != nil {
		return nil, errors.Wrap(createErr, "Failed to create task out logger")
	}

	errLogger, createErr := nucliozap.NewNuclioZap(name, "console", nil, err, err, nucliozap.ErrorLevel)
	if createErr != nil {
		return nil, errors.Wrap(createErr, "Failed to create task err logger")
	}

	muxLogger, createErr := nucliozap.NewMuxLogger(outLogger, errLogger)
	if createErr != nil {
		return nil, errors.Wrap(createErr, "Failed to create task logger")
	}

	return muxLogger, nil
}
