package collectors

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/G-Research/statscollector/internal/statscollector/collector"
	"github.com/G-Research/statscollector/internal/statscollector/pending"
	"github.com/G-Research/statscollector/internal/statscollector/running"
)

func declareTaskCollectors(r *collector.Registry) error {
	var result *multierror.Error
	result = multierror.Append(result, r.Declare(collector.Declaration{
		Name:        "pending",
		Description: "Longest current pending time of every worker pool, as tasks.<provisionerId>.<workerType>.pending.",
		Requires: []collector.Component{
			collector.ComponentMonitor,
			collector.ComponentListener,
			collector.ComponentQueue,
			collector.ComponentClock,
			collector.ComponentTasks,
		},
		Setup: func(ctx context.Context, env *collector.Env) error {
			tracker := pending.NewTracker(env.Config.Pending, env.Clock, env.Monitor, env.Queue, env.Metrics)
			env.Listener.Register(env.Name, tracker)
			tracker.Start(ctx, env.Tasks)
			return nil
		},
	}))
	result = multierror.Append(result, r.Declare(collector.Declaration{
		Name:        "running",
		Description: "Run times (tasks.<workerType>.running) and resolution reasons (tasks.<workerType>.resolved.<reason>) of resolved task runs.",
		Requires: []collector.Component{
			collector.ComponentMonitor,
			collector.ComponentListener,
		},
		Setup: func(_ context.Context, env *collector.Env) error {
			env.Listener.Register(env.Name, running.NewConsumer(env.Monitor))
			return nil
		},
	}))
	return result.ErrorOrNil()
}
