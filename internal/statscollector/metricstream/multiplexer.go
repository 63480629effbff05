package metricstream

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/G-Research/statscollector/internal/common/clock"
	"github.com/G-Research/statscollector/internal/statscollector/metrics"
)

const (
	// Assumed reporting delay of an input before any of its live datapoints arrive.
	DefaultInputDelayMs int64 = 1000
	// Number of recent live datapoints averaged into an input's delay estimate.
	delaySamples = 3
	// Added to the largest input delay on top of 12.5% of it.
	delayPaddingMs int64 = 500

	DefaultDebounceWindow = 500 * time.Millisecond
)

type MultiplexerOptions struct {
	Name string
	// One name per input, in the order of the values of output vectors
	Inputs []string
	// Window over which input changes are coalesced into one update; zero updates synchronously
	DebounceWindow time.Duration
	// Optional
	Metrics *metrics.Metrics
}

// Multiplexer merges several sample streams into one stream of vectors, emitting one
// vector for every distinct timestamp seen on any input. Each vector carries the most
// recent value of every input at that timestamp.
//
// Nothing is emitted until every input has gone live; historical datapoints are buffered
// until then. Afterwards the multiplexer stays behind the wall clock by a delay derived
// from the slowest input, so that datapoints for a timestamp have a chance to arrive from
// all inputs before its vector is emitted. Datapoints arriving after their timestamp was
// passed are discarded, but their lateness still raises the delay.
type Multiplexer struct {
	opts      MultiplexerOptions
	clock     clock.Clock
	out       Handler[[]*float64]
	debouncer *clock.Debouncer
	log       *logrus.Entry

	mu         sync.Mutex
	inputs     []*muxInput
	warm       bool
	outputLive bool
	// timestamp of the last emitted vector
	vtime  int64
	wakeup clock.Timer
}

type muxInput struct {
	mux    *Multiplexer
	name   string
	queue  []Sample
	delays []int64
	delay  int64
	// the input has signalled that no more historical datapoints will follow
	streamLive bool
	// the last datapoint taken from the queue was live
	live   bool
	latest *float64
}

// NewMultiplexer creates a multiplexer writing to out. out is called with the
// multiplexer's lock held and must not call back into it.
func NewMultiplexer(opts MultiplexerOptions, c clock.Clock, out Handler[[]*float64]) *Multiplexer {
	m := &Multiplexer{
		opts:  opts,
		clock: c,
		out:   out,
		log:   logrus.WithField("mux", opts.Name),
	}
	for _, name := range opts.Inputs {
		m.inputs = append(m.inputs, &muxInput{
			mux:   m,
			name:  name,
			delay: DefaultInputDelayMs,
		})
	}
	m.debouncer = clock.NewDebouncer("update "+opts.Name, c, opts.DebounceWindow, m.update)
	return m
}

// Input returns the handler to which the i'th input stream writes.
func (m *Multiplexer) Input(i int) Handler[float64] {
	return m.inputs[i]
}

// Delay returns how far behind the wall clock, in milliseconds, vectors are emitted.
func (m *Multiplexer) Delay() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delayLocked()
}

func (i *muxInput) HandleDatapoint(dp Sample) {
	m := i.mux
	m.mu.Lock()
	// late datapoints count towards the delay too
	if dp.Live {
		i.recordDelayLocked(m.clock.Msec() - dp.Ts)
	}
	if m.warm && dp.Ts <= m.vtime {
		m.log.Debugf("discarding late datapoint %v at %d from stream %s", dp.Value, dp.Ts, i.name)
		if m.opts.Metrics != nil {
			m.opts.Metrics.RecordLateDatapoint(m.opts.Name)
		}
		m.mu.Unlock()
		return
	}
	i.queue = append(i.queue, dp)
	m.mu.Unlock()

	m.debouncer.Trigger()
}

func (i *muxInput) recordDelayLocked(gap int64) {
	i.delays = append(i.delays, gap)
	if len(i.delays) > delaySamples {
		i.delays = i.delays[len(i.delays)-delaySamples:]
	}
	var sum int64
	for _, d := range i.delays {
		sum += d
	}
	i.delay = sum / int64(len(i.delays))
}

func (i *muxInput) HandleLive() {
	m := i.mux
	m.mu.Lock()
	i.streamLive = true
	m.mu.Unlock()

	m.debouncer.Trigger()
}

func (m *Multiplexer) delayLocked() int64 {
	var inputDelay int64
	for _, i := range m.inputs {
		if i.delay > inputDelay {
			inputDelay = i.delay
		}
	}
	// 12.5% more than the largest input delay, plus some padding
	return inputDelay + inputDelay>>3 + delayPaddingMs
}

// update advances the virtual clock through every timestamp that is far enough in the
// past, emitting a vector for each, and schedules itself for when the next one will be.
func (m *Multiplexer) update() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.warm {
		for _, i := range m.inputs {
			if !i.streamLive {
				return
			}
		}
		m.log.Debug("warmed up: all input streams are now live")
		m.warm = true
	}

	for {
		now := m.clock.Msec()
		delay := m.delayLocked()

		nextTs := int64(math.MaxInt64)
		for _, i := range m.inputs {
			if len(i.queue) > 0 && i.queue[0].Ts < nextTs {
				nextTs = i.queue[0].Ts
			}
		}

		if nextTs > now-delay {
			if nextTs != math.MaxInt64 {
				m.scheduleWakeupLocked(nextTs - (now - delay))
			}
			// every input is live (we are warm), even if some have yet to produce live datapoints
			if !m.outputLive {
				m.outputLive = true
				m.out.HandleLive()
			}
			return
		}

		allLive := true
		for _, i := range m.inputs {
			if len(i.queue) > 0 && i.queue[0].Ts <= nextTs {
				dp := i.queue[0]
				i.queue = i.queue[1:]
				value := dp.Value
				i.latest = &value
				i.live = dp.Live
			}
			allLive = allLive && i.live
		}

		if !m.outputLive && allLive {
			m.outputLive = true
			m.out.HandleLive()
		}

		values := make([]*float64, len(m.inputs))
		for idx, i := range m.inputs {
			values[idx] = i.latest
		}
		m.out.HandleDatapoint(Vector{Ts: nextTs, Value: values, Live: m.outputLive})
		m.vtime = nextTs
	}
}

func (m *Multiplexer) scheduleWakeupLocked(delayMs int64) {
	if m.wakeup != nil {
		m.wakeup.Stop()
	}
	m.wakeup = m.clock.AfterFunc("update "+m.opts.Name, clock.Millis(delayMs), m.update)
}
