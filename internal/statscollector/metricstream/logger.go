package metricstream

import (
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/G-Research/statscollector/internal/common/clock"
)

// Logger logs every datapoint of a stream at debug level and passes it on.
type Logger struct {
	prefix string
	log    *logrus.Entry
	clock  clock.Clock
	next   Handler[float64]
}

func NewLogger(prefix string, log *logrus.Entry, c clock.Clock, next Handler[float64]) *Logger {
	if prefix != "" {
		prefix += ": "
	}
	return &Logger{prefix: prefix, log: log, clock: c, next: next}
}

func (l *Logger) HandleDatapoint(dp Sample) {
	value := strconv.FormatFloat(dp.Value, 'f', -1, 64)
	if dp.Live {
		delay := float64(l.clock.Msec()-dp.Ts) / 1000
		l.log.Debugf("%sts=%d: %s (live, %ss delay)", l.prefix, dp.Ts, value, strconv.FormatFloat(delay, 'f', -1, 64))
	} else {
		l.log.Debugf("%sts=%d: %s (historical)", l.prefix, dp.Ts, value)
	}
	l.next.HandleDatapoint(dp)
}

func (l *Logger) HandleLive() {
	l.log.Debugf("%snow live", l.prefix)
	l.next.HandleLive()
}

// Sink discards everything; it terminates a chain of stages.
type Sink[V any] struct{}

func (Sink[V]) HandleDatapoint(Datapoint[V]) {}

func (Sink[V]) HandleLive() {}
