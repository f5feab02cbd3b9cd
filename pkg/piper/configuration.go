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

package piper

import (
	"strconv"
	"time"

	"github.com/nuclio/taskworker/pkg/common"
	"github.com/nuclio/taskworker/pkg/loggersink"

	"github.com/imdario/mergo"
	"github.com/nuclio/errors"
	"github.com/nuclio/zap"
)

const DefaultShutdownGracePeriod = 10 * time.Second

// Configuration of a worker pool
type Configuration struct {
	Debug        bool
	Tracing      bool
	StorageConf  string
	TasksPerNode int
	InputPipes   []string
	OutputPipes  []string

	// overrides the level Debug implies when set
	LogLevel string

	// how long to wait for busy workers once the pool is stopping
	ShutdownGracePeriod time.Duration
}

// ParseArguments reads a pool configuration from the argument vector the master starts the
// pool with: <debug> <tracing> <storage_conf> <tasks_x_node> <in_pipes...> <out_pipes...>
func ParseArguments(args []string) (*Configuration, error) {
	if len(args) < 4 {
		return nil, errors.Errorf("Expected at least 4 arguments, got %d", len(args))
	}

	tasksPerNode, err := strconv.Atoi(args[3])
	if err != nil {
		return nil, errors.Wrapf(err, "Invalid number of tasks per node: %s", args[3])
	}

	if tasksPerNode <= 0 {
		return nil, errors.Errorf("Number of tasks per node must be positive, got %d", tasksPerNode)
	}

	if len(args) != 4+2*tasksPerNode {
		return nil, errors.Errorf("Expected %d input and %d output pipes, got %d pipe arguments",
			tasksPerNode,
			tasksPerNode,
			len(args)-4)
	}

	return &Configuration{
		Debug:        args[0] == "true",
		Tracing:      args[1] == "true",
		StorageConf:  args[2],
		TasksPerNode: tasksPerNode,
		InputPipes:   append([]string{}, args[4:4+tasksPerNode]...),
		OutputPipes:  append([]string{}, args[4+tasksPerNode:]...),
	}, nil
}

// Validate checks the configuration describes one existing pipe pair per worker
func (c *Configuration) Validate() error {
	if c.TasksPerNode <= 0 {
		return errors.Errorf("Number of tasks per node must be positive, got %d", c.TasksPerNode)
	}

	if len(c.InputPipes) != c.TasksPerNode || len(c.OutputPipes) != c.TasksPerNode {
		return errors.Errorf("Expected %d pipe pairs, got %d input and %d output pipes",
			c.TasksPerNode,
			len(c.InputPipes),
			len(c.OutputPipes))
	}

	for _, pipePath := range append(append([]string{}, c.InputPipes...), c.OutputPipes...) {
		if !common.IsNamedPipe(pipePath) {
			return errors.Errorf("%s is not a named pipe", pipePath)
		}
	}

	return nil
}

// GetLevel returns the level task loggers of the pool log at
func (c *Configuration) GetLevel() nucliozap.Level {
	if c.LogLevel != "" {
		return loggersink.ParseLevel(c.LogLevel)
	}

	if c.Debug {
		return nucliozap.DebugLevel
	}

	return nucliozap.InfoLevel
}

func (c *Configuration) populateDefaults() error {
	return mergo.Merge(c, &Configuration{
		ShutdownGracePeriod: DefaultShutdownGracePeriod,
	})
}
