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
	"sync/atomic"
)

// Statistics are the task counters of a single pool worker
type Statistics struct {
	TasksHandledSuccessTotal       uint64
	TasksHandledFailureTotal       uint64
	TasksHandledTimedOutTotal      uint64
	TasksDurationMillisecondsSum   uint64
	TasksDurationMillisecondsCount uint64
	LinesReadTotal                 uint64
}

// DiffFrom returns the counters accumulated since prev was taken
func (s *Statistics) DiffFrom(prev *Statistics) Statistics {

	// atomically load the counters
	currTasksHandledSuccessTotal := atomic.LoadUint64(&s.TasksHandledSuccessTotal)
	currTasksHandledFailureTotal := atomic.LoadUint64(&s.TasksHandledFailureTotal)
	currTasksHandledTimedOutTotal := atomic.LoadUint64(&s.TasksHandledTimedOutTotal)
	currTasksDurationMillisecondsSum := atomic.LoadUint64(&s.TasksDurationMillisecondsSum)
	currTasksDurationMillisecondsCount := atomic.LoadUint64(&s.TasksDurationMillisecondsCount)
	currLinesReadTotal := atomic.LoadUint64(&s.LinesReadTotal)

	prevTasksHandledSuccessTotal := atomic.LoadUint64(&prev.TasksHandledSuccessTotal)
	prevTasksHandledFailureTotal := atomic.LoadUint64(&prev.TasksHandledFailureTotal)
	prevTasksHandledTimedOutTotal := atomic.LoadUint64(&prev.TasksHandledTimedOutTotal)
	prevTasksDurationMillisecondsSum := atomic.LoadUint64(&prev.TasksDurationMillisecondsSum)
	prevTasksDurationMillisecondsCount := atomic.LoadUint64(&prev.TasksDurationMillisecondsCount)
	prevLinesReadTotal := atomic.LoadUint64(&prev.LinesReadTotal)

	return Statistics{
		TasksHandledSuccessTotal:       currTasksHandledSuccessTotal - prevTasksHandledSuccessTotal,
		TasksHandledFailureTotal:       currTasksHandledFailureTotal - prevTasksHandledFailureTotal,
		TasksHandledTimedOutTotal:      currTasksHandledTimedOutTotal - prevTasksHandledTimedOutTotal,
		TasksDurationMillisecondsSum:   currTasksDurationMillisecondsSum - prevTasksDurationMillisecondsSum,
		TasksDurationMillisecondsCount: currTasksDurationMillisecondsCount - prevTasksDurationMillisecondsCount,
		LinesReadTotal:                 currLinesReadTotal - prevLinesReadTotal,
	}
}

// Snapshot returns an atomically loaded copy of the counters
func (s *Statistics) Snapshot() Statistics {
	return s.DiffFrom(&Statistics{})
}
