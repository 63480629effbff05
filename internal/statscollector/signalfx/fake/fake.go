// Package fake provides in-memory implementations of the SignalFx clients for tests.
package fake

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/G-Research/statscollector/internal/common/apierrors"
	"github.com/G-Research/statscollector/internal/statscollector/signalfx"
)

// QueryCall records the arguments of one TimeSeriesWindow call.
type QueryCall struct {
	Query        string
	StartMs      int64
	EndMs        int64
	ResolutionMs int64
}

// RestClient serves datapoints added with AddDatapoint. Queries with no datapoints
// fail with apierrors.ErrNotFound, as SignalFx does for unknown metrics.
type RestClient struct {
	mu         sync.Mutex
	datapoints map[string][]signalfx.Point
	failures   map[string]int
	calls      []QueryCall
}

func NewRestClient() *RestClient {
	return &RestClient{
		datapoints: map[string][]signalfx.Point{},
		failures:   map[string]int{},
	}
}

func (c *RestClient) AddDatapoint(query string, ts int64, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	points := append(c.datapoints[query], signalfx.Point{Ts: ts, Value: value})
	sort.SliceStable(points, func(i, j int) bool { return points[i].Ts < points[j].Ts })
	c.datapoints[query] = points
}

// FailNext makes the next n queries for query fail with a transient error.
func (c *RestClient) FailNext(query string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[query] = n
}

func (c *RestClient) Calls() []QueryCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]QueryCall{}, c.calls...)
}

func (c *RestClient) TimeSeriesWindow(_ context.Context, query string, startMs, endMs, resolutionMs int64) ([]signalfx.Point, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, QueryCall{Query: query, StartMs: startMs, EndMs: endMs, ResolutionMs: resolutionMs})
	if c.failures[query] > 0 {
		c.failures[query]--
		return nil, errors.WithStack(&apierrors.ErrTransient{Service: "signalfx", Message: "fake failure"})
	}
	points, ok := c.datapoints[query]
	if !ok {
		return nil, errors.WithStack(&apierrors.ErrNotFound{Type: "timeseries", Value: query})
	}
	var result []signalfx.Point
	for _, p := range points {
		if p.Ts >= startMs && p.Ts <= endMs {
			result = append(result, p)
		}
	}
	return result, nil
}

// Ingest records every request sent to it.
type Ingest struct {
	mu       sync.Mutex
	requests []signalfx.IngestRequest
}

func NewIngest() *Ingest {
	return &Ingest{}
}

func (i *Ingest) Send(req signalfx.IngestRequest) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.requests = append(i.requests, req)
}

func (i *Ingest) Requests() []signalfx.IngestRequest {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]signalfx.IngestRequest{}, i.requests...)
}

func (i *Ingest) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.requests = nil
}
