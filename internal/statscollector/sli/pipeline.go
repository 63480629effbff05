package sli

import (
	"context"

	"github.com/G-Research/statscollector/internal/statscollector/collector"
	"github.com/G-Research/statscollector/internal/statscollector/metricstream"
)

// Input is a time series read from SignalFx.
type Input struct {
	// Used in logs
	Name       string
	Query      string
	Resolution metricstream.Resolution
}

// StartPipeline reads every input from two resolutions ago, multiplexes them, aggregates
// each vector and ingests the result as a gauge named metric.
func StartPipeline(ctx context.Context, env *collector.Env, metric string, inputs []Input, aggregate metricstream.AggregateFunc) error {
	streamConfig := env.Config.MetricStream

	writeLog := metricstream.NewLogger("write datapoint", env.Log, env.Clock, metricstream.Sink[float64]{})
	ingester, err := metricstream.NewIngester(metric, metricstream.Gauge, env.Ingest, writeLog)
	if err != nil {
		return err
	}
	names := make([]string, len(inputs))
	for i, input := range inputs {
		names[i] = input.Name
	}
	mux := metricstream.NewMultiplexer(metricstream.MultiplexerOptions{
		Name:           metric + ".mux",
		Inputs:         names,
		DebounceWindow: streamConfig.DebounceWindow,
		Metrics:        env.Metrics,
	}, env.Clock, metricstream.NewAggregate(aggregate, ingester))

	streams := make([]*metricstream.SignalFxStream, len(inputs))
	for i, input := range inputs {
		input := input
		resolutionMs, err := input.Resolution.Millis()
		if err != nil {
			return err
		}
		streams[i], err = metricstream.NewSignalFxStream(metricstream.SignalFxStreamOptions{
			Query:      input.Query,
			Resolution: input.Resolution,
			// Far enough back to span short outages
			Start:                env.Clock.Msec() - 2*resolutionMs,
			RetryDelay:           streamConfig.RetryDelay,
			MaxWindowResolutions: streamConfig.MaxWindowResolutions,
			OnError: func(err error) {
				env.Monitor.ReportError(env.Name, err)
				env.Log.WithError(err).Warnf("error from stream %s", input.Name)
			},
		}, env.SignalFx, env.Clock)
		if err != nil {
			return err
		}
	}

	// Nothing is started until every stream was built.
	for i, stream := range streams {
		stream.Start(ctx, metricstream.NewLogger("received from "+inputs[i].Name, env.Log, env.Clock, mux.Input(i)))
	}
	return nil
}
