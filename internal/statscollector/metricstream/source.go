package metricstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/G-Research/statscollector/internal/common/apierrors"
	"github.com/G-Research/statscollector/internal/common/clock"
	"github.com/G-Research/statscollector/internal/statscollector/signalfx"
)

const (
	// SignalFx quantizes incoming data by its resolution, so a datapoint for a bin only
	// becomes visible some time after the bin ends.
	QuantizerDelay = 15 * time.Second

	DefaultRetryDelay = 10 * time.Second
)

type SignalFxStreamOptions struct {
	// SignalFx query, e.g. "sf_metric:sli.gecko.pending.test"
	Query      string
	Resolution Resolution
	// Epoch milliseconds of the first datapoint of interest
	Start int64
	// Delay before retrying a failed query; DefaultRetryDelay if zero
	RetryDelay time.Duration
	// Upper bound on the resolutions covered by one query while replaying history; unbounded if zero
	MaxWindowResolutions int64
	// Called with every failed query; the stream keeps retrying regardless
	OnError func(err error)
}

// SignalFxStream replays a SignalFx time series from a start time and then follows it
// live. While replaying, windows are queried back to back; once a query reaches the
// current time the stream goes live and polls once per resolution bin, shortly after
// the quantizer is expected to have written the bin out.
type SignalFxStream struct {
	opts         SignalFxStreamOptions
	resolutionMs int64
	client       signalfx.TimeSeriesQuerier
	clock        clock.Clock
	log          *log.Entry

	mu      sync.Mutex
	started bool
	latest  int64
	cursor  int64
	live    bool
}

func NewSignalFxStream(opts SignalFxStreamOptions, client signalfx.TimeSeriesQuerier, c clock.Clock) (*SignalFxStream, error) {
	resolutionMs, err := opts.Resolution.Millis()
	if err != nil {
		return nil, err
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.OnError == nil {
		opts.OnError = func(error) {}
	}
	return &SignalFxStream{
		opts:         opts,
		resolutionMs: resolutionMs,
		client:       client,
		clock:        c,
		log:          log.WithField("stream", opts.Query),
		// -1 so that a datapoint exactly at Start is emitted
		latest: opts.Start - 1,
		cursor: opts.Start - 1,
	}, nil
}

func (s *SignalFxStream) Name() string {
	return s.opts.Query
}

// Start begins fetching on the stream's clock; it never blocks. Datapoints are passed to
// out in timestamp order, each timestamp at most once. Cancelling ctx stops the stream.
func (s *SignalFxStream) Start(ctx context.Context, out Handler[float64]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		panic(fmt.Sprintf("stream %s started twice", s.opts.Query))
	}
	s.started = true
	s.scheduleLocked(ctx, out, "fetch "+s.opts.Query, 0)
}

func (s *SignalFxStream) scheduleLocked(ctx context.Context, out Handler[float64], name string, d time.Duration) {
	if ctx.Err() != nil {
		s.log.Debug("stream stopped")
		return
	}
	s.clock.AfterFunc(name, d, func() {
		s.fetch(ctx, out)
	})
}

func (s *SignalFxStream) fetch(ctx context.Context, out Handler[float64]) {
	if ctx.Err() != nil {
		return
	}
	now := s.clock.Msec()

	s.mu.Lock()
	startMs := s.cursor
	s.mu.Unlock()

	endMs := now
	if s.opts.MaxWindowResolutions > 0 {
		if maxEnd := startMs + s.opts.MaxWindowResolutions*s.resolutionMs; maxEnd < endMs {
			endMs = maxEnd
		}
	}

	points, err := s.client.TimeSeriesWindow(ctx, s.opts.Query, startMs, endMs, s.resolutionMs)
	if err != nil && !apierrors.IsNotFound(err) {
		s.opts.OnError(err)
		s.mu.Lock()
		s.scheduleLocked(ctx, out, "retry fetch "+s.opts.Query+" after error", s.opts.RetryDelay)
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		if p.Ts <= s.latest {
			continue
		}
		s.latest = p.Ts
		out.HandleDatapoint(Sample{Ts: p.Ts, Value: p.Value, Live: s.live})
	}

	s.cursor = s.latest
	if endMs < now && endMs > s.cursor {
		// a truncated window with nothing after latest; move on to the next window
		s.cursor = endMs
	}

	if endMs == now && !s.live {
		s.live = true
		out.HandleLive()
	}

	if s.live {
		// the next datapoint should be written out at the start of the next bin, plus the quantizer delay
		wakeup := now + s.resolutionMs
		wakeup -= wakeup % s.resolutionMs
		wakeup += QuantizerDelay.Milliseconds()
		delay := int64(0)
		if wakeup > now {
			delay = wakeup - now
		}
		s.scheduleLocked(ctx, out, "fetch next datapoint for "+s.opts.Query, clock.Millis(delay))
	} else {
		s.scheduleLocked(ctx, out, "fetch "+s.opts.Query, 0)
	}
}
