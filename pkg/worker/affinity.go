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

package worker

import (
	"fmt"
	"io"

	"github.com/nuclio/logger"
	"github.com/samber/lo"
	"github.com/shirou/gopsutil/cpu"
)

// affinityBinder restricts a task call to the CPUs the master bound it to
type affinityBinder struct {
	logger  logger.Logger
	numCPUs int
}

func newAffinityBinder(parentLogger logger.Logger) *affinityBinder {
	binder := &affinityBinder{
		logger: parentLogger.GetChild("affinity"),
	}

	numCPUs, err := cpu.Counts(true)
	if err != nil {
		binder.logger.WarnWith("Failed to count logical CPUs, bindings will not be validated", "err", err)
	} else {
		binder.numCPUs = numCPUs
	}

	return binder
}

// bind must be called from the goroutine that runs the task. Failures are not fatal, the
// task runs with the default affinity and a warning is written to its stderr
func (ab *affinityBinder) bind(cpus []int, stderr io.Writer) func() {
	noop := func() {}

	if len(cpus) == 0 {
		return noop
	}

	validCPUs := lo.Filter(cpus, func(cpu int, _ int) bool {
		return cpu >= 0 && (ab.numCPUs == 0 || cpu < ab.numCPUs)
	})

	if len(validCPUs) != len(cpus) {
		ab.logger.WarnWith("Ignoring bound CPUs that do not exist",
			"cpus", cpus,
			"numCPUs", ab.numCPUs)
	}

	if len(validCPUs) == 0 {
		ab.warnDefaultAffinity(cpus, stderr)
		return noop
	}

	release, err := bindThreadAffinity(validCPUs)
	if err != nil {
		ab.logger.WarnWith("Could not assign affinity", "cpus", validCPUs, "err", err.Error())
		ab.warnDefaultAffinity(cpus, stderr)
		return noop
	}

	ab.logger.DebugWith("Assigned affinity", "cpus", validCPUs)

	return release
}

func (ab *affinityBinder) warnDefaultAffinity(requestedCPUs []int, stderr io.Writer) {
	if stderr == nil {
		return
	}

	fmt.Fprintf(stderr, // nolint: errcheck
		"WARNING: Could not bind to CPUs %v, this task is going to be executed with default thread affinity %v\n",
		requestedCPUs,
		getThreadAffinity())
}
