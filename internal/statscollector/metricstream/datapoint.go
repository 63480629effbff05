// Package metricstream implements push-based streams of timestamped metric datapoints:
// sources that replay a SignalFx time series and then follow it live, a multiplexer
// that aligns several streams on a shared virtual clock, and the stages that reduce,
// ingest and log the result.
package metricstream

import (
	"github.com/pkg/errors"

	"github.com/G-Research/statscollector/internal/common/apierrors"
)

// Datapoint is a single observation at Ts (epoch milliseconds). Live is false for
// datapoints replayed from history and true once the producing stream caught up.
type Datapoint[V any] struct {
	Ts    int64
	Value V
	Live  bool
}

// Sample is a datapoint of a single metric.
type Sample = Datapoint[float64]

// Vector is a multiplexed datapoint holding one value per input stream; nil marks an
// input that has not produced a value yet.
type Vector = Datapoint[[]*float64]

// Handler receives the output of a stream stage. HandleLive is called exactly once, when
// the stream will deliver no more historical datapoints.
type Handler[V any] interface {
	HandleDatapoint(dp Datapoint[V])
	HandleLive()
}

type Resolution string

const (
	Resolution5s Resolution = "5s"
	Resolution1m Resolution = "1m"
	Resolution5m Resolution = "5m"
	Resolution1h Resolution = "1h"
)

var resolutionMillis = map[Resolution]int64{
	Resolution5s: 5 * 1000,
	Resolution1m: 60 * 1000,
	Resolution5m: 5 * 60 * 1000,
	Resolution1h: 60 * 60 * 1000,
}

func ParseResolution(s string) (Resolution, error) {
	r := Resolution(s)
	if _, ok := resolutionMillis[r]; !ok {
		return "", errors.WithStack(&apierrors.ErrInvalidArgument{
			Name:    "resolution",
			Value:   s,
			Message: "must be one of 5s, 1m, 5m, 1h",
		})
	}
	return r, nil
}

func (r Resolution) Millis() (int64, error) {
	ms, ok := resolutionMillis[r]
	if !ok {
		return 0, errors.WithStack(&apierrors.ErrInvalidArgument{
			Name:    "resolution",
			Value:   string(r),
			Message: "must be one of 5s, 1m, 5m, 1h",
		})
	}
	return ms, nil
}

// MustMillis is Millis for resolutions known to be valid, e.g. the constants above.
func (r Resolution) MustMillis() int64 {
	ms, err := r.Millis()
	if err != nil {
		panic(err)
	}
	return ms
}

func (r *Resolution) UnmarshalText(text []byte) error {
	parsed, err := ParseResolution(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
