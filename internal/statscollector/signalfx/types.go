// Package signalfx contains clients for the SignalFx historical query API and the
// SignalFx ingest API.
package signalfx

import (
	"context"
)

// Point is a single (timestamp, value) pair of a time series; Ts is in milliseconds.
type Point struct {
	Ts    int64
	Value float64
}

// Datum is a single datapoint submitted for ingestion.
type Datum struct {
	Metric     string            `json:"metric"`
	Value      float64           `json:"value"`
	Timestamp  int64             `json:"timestamp"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
}

// IngestRequest is the body of a /v2/datapoint request.
type IngestRequest struct {
	Gauges             []Datum `json:"gauge,omitempty"`
	Counters           []Datum `json:"counter,omitempty"`
	CumulativeCounters []Datum `json:"cumulative_counter,omitempty"`
}

func (r IngestRequest) Len() int {
	return len(r.Gauges) + len(r.Counters) + len(r.CumulativeCounters)
}

// merge appends the datums of other to r.
func (r *IngestRequest) merge(other IngestRequest) {
	r.Gauges = append(r.Gauges, other.Gauges...)
	r.Counters = append(r.Counters, other.Counters...)
	r.CumulativeCounters = append(r.CumulativeCounters, other.CumulativeCounters...)
}

// TimeSeriesQuerier fetches a window of a single time series. Points are returned in
// ascending timestamp order and fall within [startMs, endMs]. A query matching no time
// series fails with an apierrors.ErrNotFound.
type TimeSeriesQuerier interface {
	TimeSeriesWindow(ctx context.Context, query string, startMs, endMs, resolutionMs int64) ([]Point, error)
}

// Sender accepts datapoints for ingestion. Send must not block; delivery is best-effort.
type Sender interface {
	Send(req IngestRequest)
}
