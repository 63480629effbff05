package monitor

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/G-Research/statscollector/internal/common/clock"
	"github.com/G-Research/statscollector/internal/statscollector/metrics"
	"github.com/G-Research/statscollector/internal/statscollector/signalfx"
	"github.com/G-Research/statscollector/internal/statscollector/signalfx/fake"
)

func TestSignalFxMonitor(t *testing.T) {
	c := clock.NewFakeClock()
	ingest := fake.NewIngest()
	m := NewSignalFxMonitor("tc-stats-collector.", ingest, c, metrics.New(prometheus.NewRegistry()))

	m.Measure("tasks.prov.wt.pending", 7000)
	m.Count("tasks.wt.resolved.completed")
	m.ReportError("pending", errors.New("boom"))

	assert.Equal(t, []signalfx.IngestRequest{
		{Gauges: []signalfx.Datum{{Metric: "tc-stats-collector.tasks.prov.wt.pending", Value: 7000, Timestamp: c.Msec()}}},
		{Counters: []signalfx.Datum{{Metric: "tc-stats-collector.tasks.wt.resolved.completed", Value: 1, Timestamp: c.Msec()}}},
	}, ingest.Requests())
}

func TestSignalFxMonitor_NoPrefix(t *testing.T) {
	c := clock.NewFakeClock()
	ingest := fake.NewIngest()
	m := NewSignalFxMonitor("", ingest, c, metrics.New(prometheus.NewRegistry()))

	m.Measure("sli.foo", 1)

	assert.Equal(t, "sli.foo", ingest.Requests()[0].Gauges[0].Metric)
}
