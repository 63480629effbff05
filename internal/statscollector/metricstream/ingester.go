package metricstream

import (
	"math"

	"github.com/pkg/errors"

	"github.com/G-Research/statscollector/internal/common/apierrors"
	"github.com/G-Research/statscollector/internal/statscollector/signalfx"
)

type MetricType string

const (
	Gauge             MetricType = "gauge"
	CumulativeCounter MetricType = "cumulative_counter"
	Counter           MetricType = "counter"
)

// Ingester sends every datapoint of a stream to SignalFx, rounded to an integer, and
// passes the stream on unchanged.
type Ingester struct {
	metric     string
	metricType MetricType
	sender     signalfx.Sender
	next       Handler[float64]
}

func NewIngester(metric string, metricType MetricType, sender signalfx.Sender, next Handler[float64]) (*Ingester, error) {
	switch metricType {
	case Gauge, CumulativeCounter, Counter:
	default:
		return nil, errors.WithStack(&apierrors.ErrInvalidArgument{
			Name:    "type",
			Value:   string(metricType),
			Message: "unknown metric type",
		})
	}
	return &Ingester{
		metric:     metric,
		metricType: metricType,
		sender:     sender,
		next:       next,
	}, nil
}

func (i *Ingester) HandleDatapoint(dp Sample) {
	datum := []signalfx.Datum{{
		Metric:    i.metric,
		Value:     math.Round(dp.Value),
		Timestamp: dp.Ts,
	}}
	var req signalfx.IngestRequest
	switch i.metricType {
	case Gauge:
		req.Gauges = datum
	case CumulativeCounter:
		req.CumulativeCounters = datum
	case Counter:
		req.Counters = datum
	}
	i.sender.Send(req)
	i.next.HandleDatapoint(dp)
}

func (i *Ingester) HandleLive() {
	i.next.HandleLive()
}
