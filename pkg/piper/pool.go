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
	"sync"
	"sync/atomic"
	"time"

	"github.com/nuclio/taskworker/pkg/common/status"
	"github.com/nuclio/taskworker/pkg/errgroup"
	"github.com/nuclio/taskworker/pkg/storage"
	"github.com/nuclio/taskworker/pkg/task"
	"github.com/nuclio/taskworker/pkg/worker"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/rs/xid"
)

const pokeInterval = 100 * time.Millisecond

// Pool owns a fixed set of workers, each bound to its own pipe pair
type Pool struct {

	// accessed atomically
	status int32

	logger        logger.Logger
	id            string
	configuration *Configuration
	storage       storage.Storage
	workers       []*Worker
	exceptions    chan *Exception

	exceptionsLock     sync.Mutex
	reportedExceptions []*Exception
}

// NewPool creates the storage backend and the workers of a pool
func NewPool(parentLogger logger.Logger, configuration *Configuration, registry *task.Registry) (*Pool, error) {
	if err := configuration.Validate(); err != nil {
		return nil, errors.Wrap(err, "Invalid pool configuration")
	}

	if err := configuration.populateDefaults(); err != nil {
		return nil, errors.Wrap(err, "Failed to populate pool configuration defaults")
	}

	id := xid.New().String()

	newPool := &Pool{
		status:        int32(status.Initializing),
		logger:        parentLogger.GetChild("pool"),
		id:            id,
		configuration: configuration,
		exceptions:    make(chan *Exception, configuration.TasksPerNode),
	}

	storageInstance, err := storage.RegistrySingleton.NewStorage(newPool.logger, configuration.StorageConf)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create storage")
	}

	newPool.storage = storageInstance

	parser := worker.NewCommandParser(worker.NewCodec(newPool.logger))
	invoker := worker.NewInvoker(newPool.logger, registry, storageInstance)

	for workerIdx := 0; workerIdx < configuration.TasksPerNode; workerIdx++ {
		newWorker, err := NewWorker(newPool.logger,
			workerIdx,
			NewPipe(configuration.InputPipes[workerIdx]),
			NewPipe(configuration.OutputPipes[workerIdx]),
			parser,
			invoker,
			storageInstance,
			configuration.GetLevel(),
			newPool.exceptions)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to create worker %d", workerIdx)
		}

		newPool.workers = append(newPool.workers, newWorker)
	}

	newPool.logger.InfoWith("Created",
		"id", id,
		"numWorkers", len(newPool.workers),
		"tracing", configuration.Tracing,
		"storageEnabled", storageInstance != nil)

	return newPool, nil
}

// Start runs the workers until they all quit or ctx is done. Once ctx is done, idle workers
// are told to quit and busy ones get the grace period to finish their task
func (p *Pool) Start(ctx context.Context) error {
	p.setStatus(status.Ready)

	drainDone := make(chan struct{})
	go p.drainExceptions(drainDone)

	workersGroup, workersCtx := errgroup.WithContext(ctx, p.logger, len(p.workers))

	for _, poolWorker := range p.workers {
		poolWorker := poolWorker

		workersGroup.Go(poolWorker.GetName(), func() error {
			return poolWorker.Run(workersCtx)
		})
	}

	workersDone := make(chan error, 1)
	go func() {
		workersDone <- workersGroup.Wait()
	}()

	var workersErr error
	workersJoined := true

	select {
	case workersErr = <-workersDone:
	case <-workersCtx.Done():
		p.logger.InfoWith("Stopping workers", "gracePeriod", p.configuration.ShutdownGracePeriod.String())
		workersJoined, workersErr = p.stopWorkers(workersDone)
	}

	// a worker that was not joined may still report
	if workersJoined {
		close(p.exceptions)
		<-drainDone
	}

	if p.storage != nil {
		if err := p.storage.Finish(); err != nil {
			p.logger.WarnWith("Failed to finish storage", "err", err.Error())
		}
	}

	if workersErr != nil {
		p.setStatus(status.Error)
		return errors.Wrap(workersErr, "Workers failed")
	}

	if !workersJoined {
		p.setStatus(status.Error)
		return errors.Errorf("Timed out waiting for workers after %s", p.configuration.ShutdownGracePeriod)
	}

	p.setStatus(status.Stopped)
	p.logger.InfoWith("Stopped", "numExceptions", len(p.GetExceptions()))

	return nil
}

// GetID returns the pool's unique id
func (p *Pool) GetID() string {
	return p.id
}

// GetWorkers returns the pool's workers
func (p *Pool) GetWorkers() []*Worker {
	return p.workers
}

// GetStatus returns the pool status
func (p *Pool) GetStatus() status.Status {
	return status.Status(atomic.LoadInt32(&p.status))
}

// GetExceptions returns the exceptions workers reported so far
func (p *Pool) GetExceptions() []*Exception {
	p.exceptionsLock.Lock()
	defer p.exceptionsLock.Unlock()

	return append([]*Exception{}, p.reportedExceptions...)
}

func (p *Pool) setStatus(newStatus status.Status) {
	atomic.StoreInt32(&p.status, int32(newStatus))
}

// stopWorkers keeps poking idle workers with a quit line until all of them return
func (p *Pool) stopWorkers(workersDone <-chan error) (bool, error) {
	gracePeriodTimer := time.NewTimer(p.configuration.ShutdownGracePeriod)
	defer gracePeriodTimer.Stop()

	pokeTicker := time.NewTicker(pokeInterval)
	defer pokeTicker.Stop()

	p.pokeWorkers()

	for {
		select {
		case err := <-workersDone:
			return true, err
		case <-pokeTicker.C:
			p.pokeWorkers()
		case <-gracePeriodTimer.C:
			return false, nil
		}
	}
}

func (p *Pool) pokeWorkers() {
	for _, poolWorker := range p.workers {
		if poolWorker.GetStatus() == status.Stopped {
			continue
		}

		// fails while the worker is not blocked reading, which is retried on the next tick
		if err := poolWorker.GetInputPipe().Poke(worker.QuitTag); err == nil {
			p.logger.DebugWith("Poked worker", "worker", poolWorker.GetName())
		}
	}
}

func (p *Pool) drainExceptions(done chan<- struct{}) {
	defer close(done)

	for exception := range p.exceptions {
		p.logger.ErrorWith("EXCEPTION",
			"worker", exception.WorkerName,
			"jobID", exception.JobID,
			"err", exception.Err.Error())

		p.exceptionsLock.Lock()
		p.reportedExceptions = append(p.reportedExceptions, exception)
		p.exceptionsLock.Unlock()
	}
}
