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

package metrics

import (
	"strconv"

	"github.com/nuclio/taskworker/pkg/piper"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/prometheus/client_golang/prometheus"
)

// Gatherer moves statistics into prometheus metrics
type Gatherer interface {
	Gather() error
}

type WorkerGatherer struct {
	worker                                *piper.Worker
	prevStatistics                        piper.Statistics
	handledTasksTotal                     *prometheus.CounterVec
	handledTasksDurationMillisecondsSum   prometheus.Counter
	handledTasksDurationMillisecondsCount prometheus.Counter
	logger                                logger.Logger
}

func NewWorkerGatherer(instanceName string,
	poolID string,
	logger logger.Logger,
	worker *piper.Worker,
	metricRegistry *prometheus.Registry) (*WorkerGatherer, error) {

	newWorkerGatherer := &WorkerGatherer{
		worker: worker,
		logger: logger.GetChild("gatherer"),
	}

	// base labels for handled tasks
	labels := prometheus.Labels{
		"instance":     instanceName,
		"pool_id":      poolID,
		"worker_index": strconv.Itoa(worker.GetIndex()),
	}

	newWorkerGatherer.handledTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "taskworker_handled_tasks_total",
		Help:        "Number of handled tasks by result",
		ConstLabels: labels,
	}, []string{"result"})

	if err := metricRegistry.Register(newWorkerGatherer.handledTasksTotal); err != nil {
		return nil, errors.Wrap(err, "Failed to register handledTasksTotal")
	}

	newWorkerGatherer.handledTasksDurationMillisecondsSum = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "taskworker_handled_tasks_duration_milliseconds_sum",
		Help:        "Total sum of milliseconds it took to handle tasks",
		ConstLabels: labels,
	})

	if err := metricRegistry.Register(newWorkerGatherer.handledTasksDurationMillisecondsSum); err != nil {
		return nil, errors.Wrap(err, "Failed to register handledTasksDurationSum")
	}

	newWorkerGatherer.handledTasksDurationMillisecondsCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "taskworker_handled_tasks_duration_milliseconds_count",
		Help:        "Number of measurements taken for taskworker_handled_tasks_duration_milliseconds_sum",
		ConstLabels: labels,
	})

	if err := metricRegistry.Register(newWorkerGatherer.handledTasksDurationMillisecondsCount); err != nil {
		return nil, errors.Wrap(err, "Failed to register handledTasksDurationCount")
	}

	newWorkerGatherer.logger.DebugWith("Worker gatherer created",
		"poolID", poolID,
		"worker", worker.GetIndex())

	return newWorkerGatherer, nil
}

func (wg *WorkerGatherer) Gather() error {

	// read current stats
	currentStatistics := wg.worker.GetStatistics().Snapshot()

	// diff from previous to get this period
	diffStatistics := currentStatistics.DiffFrom(&wg.prevStatistics)

	wg.handledTasksTotal.WithLabelValues("success").Add(float64(diffStatistics.TasksHandledSuccessTotal))
	wg.handledTasksTotal.WithLabelValues("failure").Add(float64(diffStatistics.TasksHandledFailureTotal))
	wg.handledTasksTotal.WithLabelValues("timeout").Add(float64(diffStatistics.TasksHandledTimedOutTotal))
	wg.handledTasksDurationMillisecondsSum.Add(float64(diffStatistics.TasksDurationMillisecondsSum))
	wg.handledTasksDurationMillisecondsCount.Add(float64(diffStatistics.TasksDurationMillisecondsCount))

	// save previous
	wg.prevStatistics = currentStatistics

	return nil
}
