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

package command

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/nuclio/taskworker/pkg/metrics"
	"github.com/nuclio/taskworker/pkg/piper"
	"github.com/nuclio/taskworker/pkg/version"

	"github.com/nuclio/errors"
	"github.com/spf13/cobra"
)

type piperCommandeer struct {
	cmd                  *cobra.Command
	rootCommandeer       *RootCommandeer
	metricsListenAddress string
	shutdownGracePeriod  time.Duration
}

func newPiperCommandeer(rootCommandeer *RootCommandeer) *piperCommandeer {
	commandeer := &piperCommandeer{
		rootCommandeer: rootCommandeer,
	}

	cmd := &cobra.Command{
		Use:   "piper debug tracing storage_conf tasks_x_node in_pipe... out_pipe...",
		Short: "Serve tasks from named pipes with a pool of workers",
		Args:  cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			defaultLogLevel := "info"
			if args[0] == "true" {
				defaultLogLevel = "debug"
			}

			// initialize root
			if err := rootCommandeer.initialize(defaultLogLevel); err != nil {
				return errors.Wrap(err, "Failed to initialize root")
			}

			return commandeer.serve(args)
		},
	}

	cmd.Flags().StringVarP(&commandeer.metricsListenAddress,
		"metrics-listen-address",
		"",
		"",
		"Serve prometheus metrics on this address (e.g. :8090)")

	cmd.Flags().DurationVarP(&commandeer.shutdownGracePeriod,
		"shutdown-grace-period",
		"",
		piper.DefaultShutdownGracePeriod,
		"How long busy workers may take to finish once the pool is stopping")

	// pipe paths may start with a dash
	cmd.Flags().SetInterspersed(false)

	commandeer.cmd = cmd

	return commandeer
}

func (p *piperCommandeer) serve(args []string) error {
	loggerInstance := p.rootCommandeer.loggerInstance

	version.Log(loggerInstance)

	configuration, err := piper.ParseArguments(args)
	if err != nil {
		return errors.Wrap(err, "Failed to parse pool arguments")
	}

	configuration.LogLevel = p.rootCommandeer.logLevel
	configuration.ShutdownGracePeriod = p.shutdownGracePeriod

	pool, err := piper.NewPool(loggerInstance, configuration, p.rootCommandeer.registry)
	if err != nil {
		return errors.Wrap(err, "Failed to create pool")
	}

	// termination signals stop the pool
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if p.metricsListenAddress != "" {
		metricsServer, err := metrics.NewServer(loggerInstance,
			"taskworker",
			p.metricsListenAddress,
			pool.GetID(),
			pool,
			pool.GetWorkers())
		if err != nil {
			return errors.Wrap(err, "Failed to create metrics server")
		}

		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				loggerInstance.WarnWith("Metrics server failed", "err", errors.GetErrorStackString(err, 10))
			}
		}()
	}

	return pool.Start(ctx)
}
