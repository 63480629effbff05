package metricstream

import (
	"fmt"

	"github.com/G-Research/statscollector/internal/common/clock"
)

type received[V any] struct {
	At int64
	Dp Datapoint[V]
}

// recorder is a terminal stage remembering what it received and when.
type recorder[V any] struct {
	clock    *clock.FakeClock
	received []received[V]
	liveAt   []int64
}

func newRecorder[V any](c *clock.FakeClock) *recorder[V] {
	return &recorder[V]{clock: c}
}

func (r *recorder[V]) HandleDatapoint(dp Datapoint[V]) {
	r.received = append(r.received, received[V]{At: r.clock.Msec(), Dp: dp})
}

func (r *recorder[V]) HandleLive() {
	r.liveAt = append(r.liveAt, r.clock.Msec())
}

// fakeSource pushes datapoints into a handler at scheduled times, going live just before
// its first live datapoint.
type fakeSource struct {
	clock *clock.FakeClock
	out   Handler[float64]
	live  bool
}

func newFakeSource(c *clock.FakeClock, out Handler[float64]) *fakeSource {
	return &fakeSource{clock: c, out: out}
}

func (s *fakeSource) sendAt(at int64, dp Sample) {
	s.clock.AfterFunc(fmt.Sprintf("send datapoint %v", dp), clock.Millis(at-s.clock.Msec()), func() {
		if dp.Live && !s.live {
			s.goLive()
		}
		s.out.HandleDatapoint(dp)
	})
}

func (s *fakeSource) goLiveAt(at int64) {
	s.clock.AfterFunc("go live", clock.Millis(at-s.clock.Msec()), s.goLive)
}

func (s *fakeSource) goLive() {
	if !s.live {
		s.live = true
		s.out.HandleLive()
	}
}

func vec(values ...interface{}) []*float64 {
	result := make([]*float64, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		f := float64(v.(int))
		result[i] = &f
	}
	return result
}
