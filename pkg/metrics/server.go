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

package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/nuclio/taskworker/pkg/common/status"
	"github.com/nuclio/taskworker/pkg/piper"

	"github.com/heptiolabs/healthcheck"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultGatherInterval = 5 * time.Second

// Server exposes the statistics of pool workers for prometheus to pull, along with
// liveness and readiness probes of the pool
type Server struct {
	logger         logger.Logger
	listenAddress  string
	gatherInterval time.Duration
	metricRegistry *prometheus.Registry
	gatherers      []Gatherer
	healthHandler  healthcheck.Handler
}

func NewServer(parentLogger logger.Logger,
	instanceName string,
	listenAddress string,
	poolID string,
	statusProvider status.Provider,
	workers []*piper.Worker) (*Server, error) {

	newServer := &Server{
		logger:         parentLogger.GetChild("metrics"),
		listenAddress:  listenAddress,
		gatherInterval: DefaultGatherInterval,
		metricRegistry: prometheus.NewRegistry(),
		healthHandler:  healthcheck.NewHandler(),
	}

	// the pool is ready while serving, busy workers included
	newServer.healthHandler.AddReadinessCheck("pool", func() error {
		if poolStatus := statusProvider.GetStatus(); poolStatus != status.Ready {
			return errors.Errorf("Pool is %s", poolStatus)
		}

		return nil
	})

	for _, worker := range workers {
		workerGatherer, err := NewWorkerGatherer(instanceName,
			poolID,
			newServer.logger,
			worker,
			newServer.metricRegistry)

		if err != nil {
			return nil, errors.Wrap(err, "Failed to create worker gatherer")
		}

		newServer.gatherers = append(newServer.gatherers, workerGatherer)
	}

	newServer.logger.InfoWith("Created",
		"instanceName", instanceName,
		"listenAddress", listenAddress,
		"numWorkers", len(workers))

	return newServer, nil
}

// Start gathers periodically and serves until ctx is done
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.listenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.gatherPeriodically(ctx)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.WarnWith("Failed to shut down metrics server", "err", err.Error())
		}
	}()

	s.logger.DebugWith("Listening", "listenAddress", s.listenAddress)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrapf(err, "Failed to listen on %s", s.listenAddress)
	}

	return nil
}

// Handler returns the handler serving /metrics, /live and /ready
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.metricRegistry, promhttp.HandlerOpts{}))
	mux.Handle("/live", s.healthHandler)
	mux.Handle("/ready", s.healthHandler)

	return mux
}

// Gather moves the current statistics of all workers into the metrics
func (s *Server) Gather() error {
	for _, gatherer := range s.gatherers {
		if err := gatherer.Gather(); err != nil {
			return err
		}
	}

	return nil
}

func (s *Server) gatherPeriodically(ctx context.Context) {
	ticker := time.NewTicker(s.gatherInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():

			// last one, so the final counts are served while shutting down
			s.Gather() // nolint: errcheck
			return
		case <-ticker.C:
			if err := s.Gather(); err != nil {
				s.logger.WarnWith("Failed to gather metrics", "err", err.Error())
			}
		}
	}
}
