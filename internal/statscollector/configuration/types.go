package configuration

import (
	"time"

	"github.com/G-Research/statscollector/internal/common/logging"
)

const (
	ProfileProduction  = "production"
	ProfileDevelopment = "development"
	ProfileTest        = "test"
)

type StatsCollectorConfiguration struct {
	// One of production, development or test. Test-only collectors are not available in production,
	// and outside of production datapoints are logged instead of being sent to SignalFx.
	Profile string `validate:"oneof=production development test"`
	// Port on which prometheus metrics and the health check are served
	MetricsPort uint16 `validate:"gt=0"`
	Logging     logging.Config
	// Names of the collectors to run; all collectors are run if empty
	Collectors []string
	// Prefix of the task metrics published by the monitor, e.g. tc-stats-collector
	MetricPrefix string `validate:"required"`
	// How long to wait for in-flight work when shutting down
	ShutdownTimeout time.Duration
	SignalFx        SignalFxConfig
	Queue           QueueConfig
	Listener        ListenerConfig
	Pending         PendingConfig
	MetricStream    MetricStreamConfig
}

type SignalFxConfig struct {
	ApiToken  string `validate:"required"`
	RestUrl   string `validate:"required,url"`
	IngestUrl string `validate:"required,url"`
	// Timeout of a single HTTP request
	RequestTimeout time.Duration
	// Attempts made for each request before giving up; failed requests are retried after RetryDelay
	MaxAttempts uint `validate:"gte=1"`
	RetryDelay  time.Duration
	Ingest      IngestConfig
}

type IngestConfig struct {
	// Number of ingest requests merged into one post
	BatchSize int `validate:"gt=0"`
	// Maximum time a datapoint waits before its batch is sent
	BatchInterval time.Duration `validate:"gt=0"`
	// Requests queued for sending; further requests are dropped while the queue is full
	QueueSize int `validate:"gt=0"`
}

type QueueConfig struct {
	// Root URL of the Taskcluster deployment
	RootUrl        string `validate:"required,url"`
	RequestTimeout time.Duration
	MaxAttempts    uint `validate:"gte=1"`
	RetryDelay     time.Duration
	// How long lists of worker types are cached for
	WorkerTypeCacheExpiry time.Duration
}

const (
	TransportPulsar = "pulsar"
	TransportNats   = "nats"
)

type ListenerConfig struct {
	Transport string `validate:"oneof=pulsar nats"`
	Pulsar    PulsarConfig
	Nats      NatsConfig
	// Number of recently seen (taskId, runId, action) keys remembered to drop redeliveries
	DedupCacheSize int `validate:"gt=0"`
}

type PulsarConfig struct {
	URL                   string
	Topic                 string
	SubscriptionName      string
	AuthenticationEnabled bool
	JwtTokenPath          string
	ReceiveTimeout        time.Duration
}

type NatsConfig struct {
	Servers    []string
	Subject    string
	QueueGroup string
}

type PendingConfig struct {
	// How often the longest pending time of each worker pool is measured
	FlushInterval time.Duration `validate:"gt=0"`
	// How often long-pending tasks are verified against the queue; should be shorter than MinCheckAge
	CheckInterval time.Duration `validate:"gt=0"`
	// Only tasks pending for longer than this are verified
	MinCheckAge time.Duration `validate:"gt=0"`
	// Provisioners whose tasks are ignored
	IgnoreProvisioners []string
}

type MetricStreamConfig struct {
	// Window over which multiplexer updates are coalesced
	DebounceWindow time.Duration
	// Delay before retrying a failed historical query
	RetryDelay time.Duration
	// Maximum number of resolutions covered by a single historical query
	MaxWindowResolutions int64
}
