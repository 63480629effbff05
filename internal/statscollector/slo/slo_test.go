package slo

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/statscollector/internal/common/apierrors"
	"github.com/G-Research/statscollector/internal/common/clock"
	"github.com/G-Research/statscollector/internal/statscollector/collector"
	"github.com/G-Research/statscollector/internal/statscollector/configuration"
	"github.com/G-Research/statscollector/internal/statscollector/metrics"
	"github.com/G-Research/statscollector/internal/statscollector/metricstream"
	monitorfake "github.com/G-Research/statscollector/internal/statscollector/monitor/fake"
	"github.com/G-Research/statscollector/internal/statscollector/signalfx"
	signalfxfake "github.com/G-Research/statscollector/internal/statscollector/signalfx/fake"
)

func below(threshold float64) func(float64) bool {
	return func(v float64) bool { return v < threshold }
}

func f(v float64) *float64 { return &v }

func TestAggregate(t *testing.T) {
	agg := Aggregate([]Indicator{{SLI: "a", Met: below(10)}, {SLI: "b", Met: below(20)}})
	assert.Equal(t, float64(1), agg([]*float64{f(5), f(15)}))
	assert.Equal(t, float64(0), agg([]*float64{f(10), f(15)}))
	assert.Equal(t, float64(0), agg([]*float64{f(5), f(25)}))
	assert.Equal(t, float64(0), agg([]*float64{f(5), nil}))
}

func TestDeclare_Invalid(t *testing.T) {
	r := collector.NewRegistry(configuration.ProfileTest)
	assert.True(t, apierrors.IsInvalidArgument(Declare(r, Definition{Name: "none"})))
	assert.True(t, apierrors.IsInvalidArgument(Declare(r, Definition{
		Name:       "no-met",
		Indicators: []Indicator{{SLI: "a", Resolution: metricstream.Resolution5m}},
	})))
	assert.True(t, apierrors.IsInvalidArgument(Declare(r, Definition{
		Name:       "bad-resolution",
		Indicators: []Indicator{{SLI: "a", Resolution: "7m", Met: below(1)}},
	})))
}

func TestSLO(t *testing.T) {
	c := clock.NewFakeClock()
	rest := signalfxfake.NewRestClient()
	ingest := signalfxfake.NewIngest()
	t0 := c.Msec()
	const fiveMinutes int64 = 300000

	rest.AddDatapoint("sf_metric:sli.a", t0-2*fiveMinutes, 5)
	rest.AddDatapoint("sf_metric:sli.a", t0-fiveMinutes, 12)
	rest.AddDatapoint("sf_metric:sli.b", t0-2*fiveMinutes, 15)
	rest.AddDatapoint("sf_metric:sli.b", t0-fiveMinutes, 15)

	r := collector.NewRegistry(configuration.ProfileTest)
	require.NoError(t, Declare(r, Definition{
		Name: "test",
		Indicators: []Indicator{
			{SLI: "a", Resolution: metricstream.Resolution5m, Met: below(10)},
			{SLI: "b", Resolution: metricstream.Resolution5m, Met: below(20)},
		},
	}))
	require.NoError(t, r.Start(context.Background(), nil, &collector.Components{
		Clock:    c,
		Monitor:  monitorfake.NewMonitor(),
		SignalFx: rest,
		Ingest:   ingest,
		Metrics:  metrics.New(prometheus.NewRegistry()),
	}))
	c.Advance(0)

	var ingested []signalfx.Datum
	for _, req := range ingest.Requests() {
		ingested = append(ingested, req.Gauges...)
	}
	assert.Equal(t, []signalfx.Datum{
		{Metric: "slo.test", Value: 1, Timestamp: t0 - 2*fiveMinutes},
		{Metric: "slo.test", Value: 0, Timestamp: t0 - fiveMinutes},
	}, ingested)
}
