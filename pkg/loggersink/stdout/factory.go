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

package stdout

import (
	"os"

	"github.com/nuclio/taskworker/pkg/loggersink"

	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
)

type factory struct{}

func (f *factory) Create(name string, configuration *loggersink.Configuration) (logger.Logger, error) {
	encoding := configuration.Encoding
	if encoding == "" {
		encoding = "console"
	}

	// get the default encoding and override line ending to newline
	encoderConfig := nucliozap.NewEncoderConfig()
	encoderConfig.JSON.LineEnding = "\n"

	return nucliozap.NewNuclioZap(name,
		encoding,
		encoderConfig,
		os.Stdout,
		os.Stdout,
		loggersink.ParseLevel(configuration.Level))
}

// register factory
func init() {
	loggersink.RegistrySingleton.Register("stdout", &factory{})
}
