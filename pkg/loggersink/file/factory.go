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

package file

import (
	"github.com/nuclio/taskworker/pkg/loggersink"

	"github.com/imdario/mergo"
	"github.com/mitchellh/go-homedir"
	"github.com/mitchellh/mapstructure"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Configuration struct {
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type factory struct{}

func (f *factory) Create(name string, configuration *loggersink.Configuration) (logger.Logger, error) {
	fileConfiguration, err := NewConfiguration(configuration)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create file logger sink configuration")
	}

	writer := &lumberjack.Logger{
		Filename:   fileConfiguration.FilePath,
		MaxSize:    fileConfiguration.MaxSizeMB,
		MaxBackups: fileConfiguration.MaxBackups,
		MaxAge:     fileConfiguration.MaxAgeDays,
		Compress:   fileConfiguration.Compress,
	}

	encoding := configuration.Encoding
	if encoding == "" {
		encoding = "json"
	}

	encoderConfig := nucliozap.NewEncoderConfig()
	encoderConfig.JSON.LineEnding = "\n"

	return nucliozap.NewNuclioZap(name,
		encoding,
		encoderConfig,
		writer,
		writer,
		loggersink.ParseLevel(configuration.Level))
}

func NewConfiguration(configuration *loggersink.Configuration) (*Configuration, error) {
	newConfiguration := Configuration{}

	// parse attributes
	if err := mapstructure.Decode(configuration.Attributes, &newConfiguration); err != nil {
		return nil, errors.Wrap(err, "Failed to decode attributes")
	}

	if newConfiguration.FilePath == "" {
		return nil, errors.New("File path must not be empty")
	}

	expandedFilePath, err := homedir.Expand(newConfiguration.FilePath)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to expand file path %s", newConfiguration.FilePath)
	}

	newConfiguration.FilePath = expandedFilePath

	if err := mergo.Merge(&newConfiguration, Configuration{
		MaxSizeMB:  10,
		MaxBackups: 1,
		MaxAgeDays: 7,
	}); err != nil {
		return nil, errors.Wrap(err, "Failed to apply defaults")
	}

	return &newConfiguration, nil
}

// register factory
func init() {
	loggersink.RegistrySingleton.Register("file", &factory{})
}
