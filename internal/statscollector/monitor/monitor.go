package monitor

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/G-Research/statscollector/internal/common/clock"
	"github.com/G-Research/statscollector/internal/common/logging"
	"github.com/G-Research/statscollector/internal/statscollector/metrics"
	"github.com/G-Research/statscollector/internal/statscollector/signalfx"
)

// Monitor publishes the task metrics derived by collectors and reports their errors.
type Monitor interface {
	// Measure records a single observation of metric, e.g. a pending time in milliseconds.
	Measure(metric string, value float64)
	// Count increments metric by one.
	Count(metric string)
	// ReportError reports an error that did not stop the collector.
	ReportError(collector string, err error)
}

// SignalFxMonitor sends measures as gauges and counts as counters, named prefix.metric.
type SignalFxMonitor struct {
	prefix  string
	sender  signalfx.Sender
	clock   clock.Clock
	metrics *metrics.Metrics
}

func NewSignalFxMonitor(prefix string, sender signalfx.Sender, c clock.Clock, m *metrics.Metrics) *SignalFxMonitor {
	return &SignalFxMonitor{
		prefix:  strings.TrimSuffix(prefix, "."),
		sender:  sender,
		clock:   c,
		metrics: m,
	}
}

func (m *SignalFxMonitor) Measure(metric string, value float64) {
	m.sender.Send(signalfx.IngestRequest{
		Gauges: []signalfx.Datum{m.datum(metric, value)},
	})
}

func (m *SignalFxMonitor) Count(metric string) {
	m.sender.Send(signalfx.IngestRequest{
		Counters: []signalfx.Datum{m.datum(metric, 1)},
	})
}

func (m *SignalFxMonitor) ReportError(collector string, err error) {
	m.metrics.RecordCollectorError(collector)
	logging.WithStacktrace(log.WithField("collector", collector), err).Error("collector error")
}

func (m *SignalFxMonitor) datum(metric string, value float64) signalfx.Datum {
	name := metric
	if m.prefix != "" {
		name = m.prefix + "." + metric
	}
	return signalfx.Datum{
		Metric:    name,
		Value:     value,
		Timestamp: m.clock.Msec(),
	}
}
