//go:build linux

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
	"runtime"

	"github.com/nuclio/errors"
	"golang.org/x/sys/unix"
)

// bindThreadAffinity locks the calling goroutine to its OS thread and restricts that thread
// to cpus. The returned function restores the previous mask and unlocks the thread
func bindThreadAffinity(cpus []int) (func(), error) {
	runtime.LockOSThread()

	var previousSet unix.CPUSet
	if err := unix.SchedGetaffinity(0, &previousSet); err != nil {
		runtime.UnlockOSThread()
		return nil, errors.Wrap(err, "Failed to get thread affinity")
	}

	var set unix.CPUSet
	for _, cpu := range cpus {
		set.Set(cpu)
	}

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return nil, errors.Wrapf(err, "Failed to set thread affinity to %v", cpus)
	}

	return func() {

		// a thread whose mask could not be restored stays locked and dies with its goroutine
		if err := unix.SchedSetaffinity(0, &previousSet); err != nil {
			return
		}

		runtime.UnlockOSThread()
	}, nil
}

const maxCPUs = 1024

func getThreadAffinity() []int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil
	}

	var cpus []int
	for cpu := 0; cpu < maxCPUs && len(cpus) < set.Count(); cpu++ {
		if set.IsSet(cpu) {
			cpus = append(cpus, cpu)
		}
	}

	return cpus
}
