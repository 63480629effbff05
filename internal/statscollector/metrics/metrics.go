package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricPrefix = "statscollector_"

type MessageError string

const (
	MessageErrorDecode     MessageError = "decode"
	MessageErrorProcessing MessageError = "processing"
)

// Metrics are the operational metrics of the collector process itself, as opposed to
// the task metrics it publishes to SignalFx.
type Metrics struct {
	messagesReceived   *prometheus.CounterVec
	messageErrors      *prometheus.CounterVec
	duplicateMessages  prometheus.Counter
	queries            *prometheus.CounterVec
	queryErrors        *prometheus.CounterVec
	lateDatapoints     *prometheus.CounterVec
	ingestRequests     prometheus.Counter
	ingestFailures     prometheus.Counter
	ingestDropped      prometheus.Counter
	collectorErrors    *prometheus.CounterVec
	trackedPendingTask *prometheus.GaugeVec
}

func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPrefix + "messages_received",
			Help: "Number of task messages received grouped by action",
		}, []string{"action"}),
		messageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPrefix + "message_errors",
			Help: "Number of task messages dropped grouped by error type",
		}, []string{"error"}),
		duplicateMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: MetricPrefix + "duplicate_messages",
			Help: "Number of redelivered task messages that were dropped",
		}),
		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPrefix + "queries",
			Help: "Number of queries to external services grouped by service",
		}, []string{"service"}),
		queryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPrefix + "query_errors",
			Help: "Number of failed queries to external services grouped by service",
		}, []string{"service"}),
		lateDatapoints: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPrefix + "late_datapoints",
			Help: "Number of datapoints discarded by a multiplexer because they arrived too late",
		}, []string{"stream"}),
		ingestRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: MetricPrefix + "ingest_requests",
			Help: "Number of batches posted to the SignalFx ingest API",
		}),
		ingestFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: MetricPrefix + "ingest_failures",
			Help: "Number of batches that could not be posted to the SignalFx ingest API",
		}),
		ingestDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: MetricPrefix + "ingest_dropped",
			Help: "Number of ingest requests dropped because the send queue was full",
		}),
		collectorErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPrefix + "collector_errors",
			Help: "Number of errors reported by collectors",
		}, []string{"collector"}),
		trackedPendingTask: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricPrefix + "tracked_pending_tasks",
			Help: "Number of tasks currently believed to be pending, by worker pool",
		}, []string{"pool"}),
	}
}

func (m *Metrics) RecordMessage(action string) {
	m.messagesReceived.With(map[string]string{"action": action}).Inc()
}

func (m *Metrics) RecordMessageError(error MessageError) {
	m.messageErrors.With(map[string]string{"error": string(error)}).Inc()
}

func (m *Metrics) RecordDuplicateMessage() {
	m.duplicateMessages.Inc()
}

func (m *Metrics) RecordQuery(service string) {
	m.queries.With(map[string]string{"service": service}).Inc()
}

func (m *Metrics) RecordQueryError(service string) {
	m.queryErrors.With(map[string]string{"service": service}).Inc()
}

func (m *Metrics) RecordLateDatapoint(stream string) {
	m.lateDatapoints.With(map[string]string{"stream": stream}).Inc()
}

func (m *Metrics) RecordIngestRequest() {
	m.ingestRequests.Inc()
}

func (m *Metrics) RecordIngestFailure() {
	m.ingestFailures.Inc()
}

func (m *Metrics) RecordIngestDropped() {
	m.ingestDropped.Inc()
}

func (m *Metrics) RecordCollectorError(collector string) {
	m.collectorErrors.With(map[string]string{"collector": collector}).Inc()
}

func (m *Metrics) SetTrackedPendingTasks(pool string, count int) {
	m.trackedPendingTask.With(map[string]string{"pool": pool}).Set(float64(count))
}
