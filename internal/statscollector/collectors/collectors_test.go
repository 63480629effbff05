package collectors

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/statscollector/internal/common/clock"
	"github.com/G-Research/statscollector/internal/common/task"
	"github.com/G-Research/statscollector/internal/statscollector/collector"
	"github.com/G-Research/statscollector/internal/statscollector/configuration"
	"github.com/G-Research/statscollector/internal/statscollector/listener"
	"github.com/G-Research/statscollector/internal/statscollector/metrics"
	monitorfake "github.com/G-Research/statscollector/internal/statscollector/monitor/fake"
	"github.com/G-Research/statscollector/internal/statscollector/queue"
	queuefake "github.com/G-Research/statscollector/internal/statscollector/queue/fake"
	signalfxfake "github.com/G-Research/statscollector/internal/statscollector/signalfx/fake"
)

func names(r *collector.Registry) []string {
	var result []string
	for _, info := range r.Declarations() {
		result = append(result, info.Name)
	}
	return result
}

func TestDeclareAll(t *testing.T) {
	r := collector.NewRegistry(configuration.ProfileTest)
	require.NoError(t, DeclareAll(r))
	assert.Equal(t, []string{
		"eb.eb-test",
		"eb.gecko.pending",
		"pending",
		"running",
		"sli.gecko.pending.build",
		"sli.gecko.pending.other",
		"sli.gecko.pending.test",
		"slo.gecko.pending",
	}, names(r))
}

func TestDeclareAll_Production(t *testing.T) {
	r := collector.NewRegistry(configuration.ProfileProduction)
	require.NoError(t, DeclareAll(r))
	assert.NotContains(t, names(r), "eb.eb-test")
	assert.Len(t, names(r), 7)
}

func TestDeclareAll_Twice(t *testing.T) {
	r := collector.NewRegistry(configuration.ProfileTest)
	require.NoError(t, DeclareAll(r))
	assert.Error(t, DeclareAll(r))
}

func TestWorkerTypeFilters(t *testing.T) {
	tests := map[string]struct{ test, build, other bool }{
		"desktop-test-large":    {test: true},
		"gecko-t-linux-large":   {test: true},
		"gecko-t-win10-64-beta": {},
		"gecko-t-osx-alpha":     {},
		"gecko-1-b-linux":       {build: true},
		"gecko-3-b-win2012":     {build: true},
		"gecko-4-b-linux":       {other: true},
		"gecko-1-decision":      {other: true},
		"gecko-3-images":        {other: true},
		"tutorial":              {},
	}
	for wt, expected := range tests {
		t.Run(wt, func(t *testing.T) {
			assert.Equal(t, expected.test, isGeckoTest(wt))
			assert.Equal(t, expected.build, isGeckoBuild(wt))
			assert.Equal(t, expected.other, isGeckoOther(wt))
		})
	}
}

func TestPendingInputs(t *testing.T) {
	q := queuefake.NewQueue()
	q.SetWorkerTypes(awsProvisioner, "gecko-1-decision", "gecko-t-linux", "gecko-1-b-linux", "taskcluster-images")
	env := &collector.Env{Components: &collector.Components{
		Queue:  q,
		Config: configuration.StatsCollectorConfiguration{MetricPrefix: "tc-stats-collector"},
	}}

	specs, err := pendingInputs(isGeckoOther, "taskcluster-images")(context.Background(), env)
	require.NoError(t, err)
	var queries []string
	for _, spec := range specs {
		input, err := spec.Input()
		require.NoError(t, err)
		queries = append(queries, input.Query)
	}
	assert.Equal(t, []string{
		"sf_metric:tc-stats-collector.tasks.aws-provisioner-v1.gecko-1-decision.pending.5m.p95",
		"sf_metric:tc-stats-collector.tasks.aws-provisioner-v1.taskcluster-images.pending.5m.p95",
	}, queries)
}

func TestGeckoSLOThresholds(t *testing.T) {
	assert.True(t, below(20*time.Minute)(float64(19*time.Minute/time.Millisecond)))
	assert.False(t, below(20*time.Minute)(float64(20*time.Minute/time.Millisecond)))
}

// Messages from the listener reach both task collectors.
func TestTaskCollectors(t *testing.T) {
	c := clock.NewFakeClock()
	m := metrics.New(prometheus.NewRegistry())
	mon := monitorfake.NewMonitor()
	dispatcher, err := listener.NewDispatcher(100, m)
	require.NoError(t, err)

	r := collector.NewRegistry(configuration.ProfileTest)
	require.NoError(t, DeclareAll(r))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Start(ctx, []string{"pending", "running"}, &collector.Components{
		Clock:    c,
		Monitor:  mon,
		Queue:    queuefake.NewQueue(),
		Listener: dispatcher,
		Tasks:    task.NewBackgroundTaskManager(c, "test_", prometheus.NewRegistry()),
		Metrics:  m,
		Config: configuration.StatsCollectorConfiguration{
			Pending: configuration.PendingConfig{
				FlushInterval: time.Minute,
				CheckInterval: 2 * time.Minute,
				MinCheckAge:   5 * time.Minute,
			},
		},
	}))

	now := c.Msec()
	runId := 0
	status := queue.TaskStatus{
		TaskId:        "t1",
		ProvisionerId: "prov",
		WorkerType:    "wt",
		Runs: []queue.Run{{
			State:         queue.StatePending,
			ReasonCreated: "scheduled",
			Scheduled:     time.UnixMilli(now - 3000),
		}},
	}
	dispatcher.DispatchMessage(ctx, &listener.TaskMessage{Action: listener.ActionPending, TaskId: "t1", RunId: &runId, Status: status})

	status.Runs[0].State = queue.StateCompleted
	status.Runs[0].Started = time.UnixMilli(now - 2000)
	status.Runs[0].Resolved = time.UnixMilli(now)
	status.Runs[0].ReasonResolved = "completed"
	dispatcher.DispatchMessage(ctx, &listener.TaskMessage{Action: listener.ActionCompleted, TaskId: "t1", RunId: &runId, Status: status})

	c.Advance(time.Minute)
	assert.Equal(t, map[string][]float64{
		"tasks.wt.running":      {2000},
		"tasks.prov.wt.pending": {0},
	}, mon.TakeMeasures())
	assert.Equal(t, map[string]int{"tasks.wt.resolved.completed": 1}, mon.TakeCounts())
}

func TestSLIRequiresQueue(t *testing.T) {
	r := collector.NewRegistry(configuration.ProfileTest)
	require.NoError(t, DeclareAll(r))
	err := r.Start(context.Background(), []string{"sli.gecko.pending.test"}, &collector.Components{
		Clock:    clock.NewFakeClock(),
		Monitor:  monitorfake.NewMonitor(),
		SignalFx: signalfxfake.NewRestClient(),
		Ingest:   signalfxfake.NewIngest(),
	})
	assert.Error(t, err)
}
