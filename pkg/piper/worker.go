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
	"context"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/nuclio/taskworker/pkg/common"
	"github.com/nuclio/taskworker/pkg/common/status"
	"github.com/nuclio/taskworker/pkg/loggersink"
	"github.com/nuclio/taskworker/pkg/storage"
	"github.com/nuclio/taskworker/pkg/worker"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
)

// Exception is reported on the side channel when a worker could not run a task line
type Exception struct {
	WorkerName string
	JobID      string
	Err        error
}

// Worker serves the tasks the master writes to one input pipe, one at a time
type Worker struct {

	// accessed atomically, keep as first field for alignment
	statistics Statistics

	// accessed atomically
	status int32

	logger     logger.Logger
	index      int
	name       string
	inputPipe  *Pipe
	outputPipe *Pipe
	parser     *worker.CommandParser
	invoker    *worker.Invoker
	storage    storage.Storage
	level      nucliozap.Level
	exceptions chan<- *Exception
}

// NewWorker creates a pool worker bound to a pair of pipes
func NewWorker(parentLogger logger.Logger,
	index int,
	inputPipe *Pipe,
	outputPipe *Pipe,
	parser *worker.CommandParser,
	invoker *worker.Invoker,
	storageInstance storage.Storage,
	level nucliozap.Level,
	exceptions chan<- *Exception) (*Worker, error) {

	if inputPipe == nil || outputPipe == nil {
		return nil, errors.New("Worker requires an input and an output pipe")
	}

	name := workerName(index)

	return &Worker{
		status:     int32(status.Initializing),
		logger:     parentLogger.GetChild(name),
		index:      index,
		name:       name,
		inputPipe:  inputPipe,
		outputPipe: outputPipe,
		parser:     parser,
		invoker:    invoker,
		storage:    storageInstance,
		level:      level,
		exceptions: exceptions,
	}, nil
}

// Run serves task lines until a quit line is read or ctx is done
func (w *Worker) Run(ctx context.Context) error {
	if hooks, hasHooks := w.storage.(storage.WorkerHooks); hasHooks {
		if err := hooks.InitWorkerPostFork(); err != nil {
			w.setStatus(status.Error)
			return errors.Wrap(err, "Failed to initialize storage for worker")
		}

		defer func() {
			if err := hooks.FinishWorkerPostFork(); err != nil {
				w.logger.WarnWith("Failed to finish storage for worker", "err", err.Error())
			}
		}()
	}

	w.setStatus(status.Ready)
	defer w.setStatus(status.Stopped)

	w.logger.DebugWith("Serving",
		"inputPipe", w.inputPipe.Path,
		"outputPipe", w.outputPipe.Path)

	for serving := true; serving && ctx.Err() == nil; {
		line, err := w.inputPipe.ReadLine()
		if err != nil {
			w.setStatus(status.Error)
			return errors.Wrap(err, "Failed to read command")
		}

		atomic.AddUint64(&w.statistics.LinesReadTotal, 1)

		serving = w.processLine(ctx, line)
	}

	w.logger.DebugWith("Stopped serving")

	return nil
}

// GetStatistics returns a pointer to the statistics object. This must only be used for reading
func (w *Worker) GetStatistics() *Statistics {
	return &w.statistics
}

// GetIndex returns the index of the worker in the pool
func (w *Worker) GetIndex() int {
	return w.index
}

// GetName returns the process name tasks of this worker see
func (w *Worker) GetName() string {
	return w.name
}

// GetStatus returns the worker status
func (w *Worker) GetStatus() status.Status {
	return status.Status(atomic.LoadInt32(&w.status))
}

// GetInputPipe returns the pipe the worker reads commands from
func (w *Worker) GetInputPipe() *Pipe {
	return w.inputPipe
}

func (w *Worker) setStatus(newStatus status.Status) {
	atomic.StoreInt32(&w.status, int32(newStatus))
}

// processLine handles one control line and returns false once the worker should stop
func (w *Worker) processLine(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		w.logger.DebugWith("Ignoring empty command")
		return true
	}

	switch fields[0] {
	case worker.ExecuteTaskTag:
		w.processTask(ctx, line)

	case worker.QuitTag:
		w.logger.DebugWith("Received quit")
		return false

	case worker.InitTag:
		w.logger.DebugWith("Received init", "line", line)

	default:
		w.logger.WarnWith("Ignoring unknown command", "tag", fields[0])
	}

	return true
}

// processTask runs a task line and always answers it on the output pipe when its job id can
// be read
func (w *Worker) processTask(ctx context.Context, line string) {
	w.setStatus(status.Busy)
	defer w.setStatus(status.Ready)

	response, err := w.executeTask(ctx, line)
	if err != nil {
		atomic.AddUint64(&w.statistics.TasksHandledFailureTotal, 1)

		jobID, jobIDFound := worker.ParseJobID(line)

		w.logger.ErrorWith("Failed to execute task",
			"jobID", jobID,
			"err", errors.GetErrorStackString(err, 10))

		w.reportException(jobID, err)

		if !jobIDFound {
			return
		}

		response = worker.EncodeFailure(jobID)
	}

	if err := w.outputPipe.WriteLine(response); err != nil {
		w.logger.ErrorWith("Failed to write response", "err", err.Error())

		jobID, _ := worker.ParseJobID(line)
		w.reportException(jobID, err)
	}
}

func (w *Worker) executeTask(ctx context.Context, line string) (response string, err error) {
	defer func() {
		if recoveredErr := recover(); recoveredErr != nil {
			common.LogPanic(w.logger, "executeTask", debug.Stack(), recoveredErr)
			err = errors.Wrap(common.ErrorFromRecoveredError(recoveredErr), "Task execution panicked")
		}
	}()

	command, err := w.parser.ParseTaskLine(line)
	if err != nil {
		return "", errors.Wrap(err, "Failed to parse task line")
	}

	jobOut, err := openJobFile(command.JobOutPath)
	if err != nil {
		return "", errors.Wrap(err, "Failed to open job out file")
	}

	defer jobOut.Close() // nolint: errcheck

	jobErr, err := openJobFile(command.JobErrPath)
	if err != nil {
		return "", errors.Wrap(err, "Failed to open job err file")
	}

	defer jobErr.Close() // nolint: errcheck

	level := w.level
	if command.Debug {
		level = nucliozap.DebugLevel
	}

	taskLogger, err := loggersink.CreateTaskLogger(w.name, level, jobOut, jobErr)
	if err != nil {
		return "", errors.Wrap(err, "Failed to create task logger")
	}

	taskLogger.DebugWith("Received task",
		"jobID", command.JobID,
		"taskID", command.TaskID,
		"path", command.Path,
		"method", command.Method)

	outcome := w.invoker.Invoke(ctx, command, &worker.InvokeOptions{
		Logger:      taskLogger,
		Stdout:      jobOut,
		Stderr:      jobErr,
		ProcessName: w.name,
	})

	w.recordOutcome(outcome)

	return worker.EncodeEndTask(command.JobID, command, outcome), nil
}

func (w *Worker) recordOutcome(outcome *worker.Outcome) {
	switch outcome.ExitCode {
	case worker.ExitCodeSuccess:
		atomic.AddUint64(&w.statistics.TasksHandledSuccessTotal, 1)
	case worker.ExitCodeTimedOut:
		atomic.AddUint64(&w.statistics.TasksHandledTimedOutTotal, 1)
	default:
		atomic.AddUint64(&w.statistics.TasksHandledFailureTotal, 1)
	}

	atomic.AddUint64(&w.statistics.TasksDurationMillisecondsSum, uint64(outcome.Duration.Milliseconds()))
	atomic.AddUint64(&w.statistics.TasksDurationMillisecondsCount, 1)
}

func (w *Worker) reportException(jobID string, err error) {
	if w.exceptions == nil {
		return
	}

	w.exceptions <- &Exception{
		WorkerName: w.name,
		JobID:      jobID,
		Err:        err,
	}
}

func openJobFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

func workerName(index int) string {
	return "worker-" + strconv.Itoa(index)
}
