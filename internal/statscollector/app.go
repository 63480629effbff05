// Package statscollector wires the collectors to their components and runs them.
package statscollector

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/G-Research/statscollector/internal/common"
	"github.com/G-Research/statscollector/internal/common/clock"
	"github.com/G-Research/statscollector/internal/common/health"
	"github.com/G-Research/statscollector/internal/common/task"
	"github.com/G-Research/statscollector/internal/statscollector/collector"
	"github.com/G-Research/statscollector/internal/statscollector/collectors"
	"github.com/G-Research/statscollector/internal/statscollector/configuration"
	"github.com/G-Research/statscollector/internal/statscollector/listener"
	"github.com/G-Research/statscollector/internal/statscollector/metrics"
	"github.com/G-Research/statscollector/internal/statscollector/monitor"
	"github.com/G-Research/statscollector/internal/statscollector/queue"
	"github.com/G-Research/statscollector/internal/statscollector/signalfx"
)

// NewRegistry returns a registry holding every collector available with config's profile.
func NewRegistry(config configuration.StatsCollectorConfiguration) (*collector.Registry, error) {
	registry := collector.NewRegistry(config.Profile)
	if err := collectors.DeclareAll(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// Run runs the configured collectors until ctx is cancelled.
func Run(ctx context.Context, config configuration.StatsCollectorConfiguration) error {
	log.Infof("stats collector starting with profile %s", config.Profile)

	registry, err := NewRegistry(config)
	if err != nil {
		return err
	}
	selected, err := registry.Select(config.Collectors)
	if err != nil {
		return err
	}

	startupCompleteCheck := health.NewStartupCompleteChecker()
	healthChecks := health.NewMultiChecker(startupCompleteCheck)
	shutdownMetricServer := common.ServeMetrics(config.MetricsPort, healthChecks)
	defer shutdownMetricServer()

	m := metrics.New(prometheus.DefaultRegisterer)
	realClock := clock.NewRealClock()
	g, ctx := errgroup.WithContext(ctx)

	// Outside of production datapoints are only logged.
	var sender signalfx.Sender
	if config.Profile == configuration.ProfileProduction {
		ingestClient := signalfx.NewIngestClient(config.SignalFx, m)
		g.Go(func() error {
			ingestClient.Run(ctx)
			return nil
		})
		sender = ingestClient
	} else {
		sender = signalfx.NewLoggingSender(log.WithField("sender", "signalfx"))
	}

	mon := monitor.NewSignalFxMonitor(config.MetricPrefix, sender, realClock, m)
	tasks := task.NewBackgroundTaskManager(realClock, "statscollector_", prometheus.DefaultRegisterer)
	tasks.OnError(mon.ReportError)
	dispatcher, err := listener.NewDispatcher(config.Listener.DedupCacheSize, m)
	if err != nil {
		return err
	}

	components := &collector.Components{
		Clock:    realClock,
		Monitor:  mon,
		SignalFx: signalfx.NewRestClient(config.SignalFx, m),
		Ingest:   sender,
		Queue:    queue.NewRestClient(config.Queue, m),
		Listener: dispatcher,
		Tasks:    tasks,
		Metrics:  m,
		Config:   config,
	}
	names := make([]string, len(selected))
	for i, d := range selected {
		names[i] = d.Name
	}
	if err := registry.Start(ctx, names, components); err != nil {
		return err
	}

	// Messages are only consumed once every collector has registered its handlers.
	if requiresListener(selected) {
		transport, err := listener.NewTransport(config.Listener)
		if err != nil {
			return errors.WithMessage(err, "connecting to the event bus")
		}
		defer transport.Close()
		healthChecks.Add(transport)
		g.Go(func() error {
			return transport.Run(ctx, dispatcher)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info("stats collector shutting down")
		if timedOut := tasks.StopAll(config.ShutdownTimeout); timedOut {
			log.Warnf("background tasks did not finish within %s", config.ShutdownTimeout)
		}
		return nil
	})

	startupCompleteCheck.MarkComplete()
	log.Infof("started %d collectors: %v", len(names), names)
	return g.Wait()
}

func requiresListener(declarations []collector.Declaration) bool {
	for _, d := range declarations {
		for _, c := range d.Requires {
			if c == collector.ComponentListener {
				return true
			}
		}
	}
	return false
}
