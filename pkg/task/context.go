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

package task

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nuclio/logger"
	"github.com/samber/lo"
)

// Context is handed to every entrypoint. It is cancelled when the task deadline expires and
// handlers performing long work must observe Done()
type Context struct {
	context.Context

	// set when the call originates from the worker rather than from user code
	RuntimeOriginated bool
	Tracing           bool
	ProcessName       string
	StorageConf       string
	ReturnLength      int

	Logger    logger.Logger
	Stdout    io.Writer
	Stderr    io.Writer
	Resources *Resources
}

// Output is what a task entrypoint returns to the worker
type Output struct {
	Types              []ParameterType
	Values             []interface{}
	TargetUpdatePolicy TargetUpdatePolicy
}

// Resources is the execution context the master assigned to a single task
type Resources struct {
	ComputingUnits string
	SlaveNodes     []string
	BoundCPUs      []int
	BoundGPUs      []int
	HostList       string
}

// Environ renders the resource bindings as environment variables for child processes a task starts
func (r *Resources) Environ() []string {
	if r == nil {
		return nil
	}

	var environ []string

	if len(r.BoundCPUs) > 0 {
		environ = append(environ, fmt.Sprintf("COMPSS_BINDED_CPUS=%s", joinInts(r.BoundCPUs)))
	}

	if len(r.BoundGPUs) > 0 {
		gpus := joinInts(r.BoundGPUs)
		environ = append(environ,
			fmt.Sprintf("COMPSS_BINDED_GPUS=%s", gpus),
			fmt.Sprintf("CUDA_VISIBLE_DEVICES=%s", gpus),
			fmt.Sprintf("GPU_DEVICE_ORDINAL=%s", gpus))
	}

	if r.HostList != "" {
		environ = append(environ, fmt.Sprintf("COMPSS_HOSTNAMES=%s", r.HostList))
	}

	return environ
}

func joinInts(values []int) string {
	return strings.Join(lo.Map(values, func(value int, _ int) string {
		return fmt.Sprint(value)
	}), ",")
}
