package signalfx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/statscollector/internal/common/apierrors"
	"github.com/G-Research/statscollector/internal/common/ingest"
	"github.com/G-Research/statscollector/internal/common/logging"
	"github.com/G-Research/statscollector/internal/statscollector/configuration"
	"github.com/G-Research/statscollector/internal/statscollector/metrics"
)

const datapointEp = "/v2/datapoint"

// IngestClient sends datapoints to the SignalFx ingest API. Send only queues the request;
// Run merges queued requests into batches and posts them, retrying failed posts.
type IngestClient struct {
	client  *resty.Client
	queue   chan IngestRequest
	config  configuration.SignalFxConfig
	metrics *metrics.Metrics
}

func NewIngestClient(config configuration.SignalFxConfig, m *metrics.Metrics) *IngestClient {
	client := resty.New().
		SetBaseURL(config.IngestUrl).
		SetTimeout(config.RequestTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader(tokenHeader, config.ApiToken)
	return &IngestClient{
		client:  client,
		queue:   make(chan IngestRequest, config.Ingest.QueueSize),
		config:  config,
		metrics: m,
	}
}

func (c *IngestClient) Send(req IngestRequest) {
	if req.Len() == 0 {
		return
	}
	select {
	case c.queue <- req:
	default:
		c.metrics.RecordIngestDropped()
		log.Warnf("ingest queue is full; dropping %d datapoints", req.Len())
	}
}

// Run posts batches until ctx is done, then posts whatever is still buffered.
func (c *IngestClient) Run(ctx context.Context) {
	batcher := ingest.NewBatcher[IngestRequest](c.queue, c.config.Ingest.BatchSize, c.config.Ingest.BatchInterval, func(reqs []IngestRequest) {
		merged := IngestRequest{}
		for _, req := range reqs {
			merged.merge(req)
		}
		c.post(merged)
	})
	batcher.Run(ctx)
}

func (c *IngestClient) post(req IngestRequest) {
	// Not bound to the Run context so that the final batch is delivered on shutdown.
	timeout := c.config.RequestTimeout*time.Duration(c.config.MaxAttempts) + c.config.RetryDelay*time.Duration(c.config.MaxAttempts)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := retry.Do(
		func() error {
			c.metrics.RecordIngestRequest()
			resp, err := c.client.R().
				SetContext(ctx).
				SetBody(req).
				Post(datapointEp)
			if err != nil {
				return errors.WithStack(&apierrors.ErrTransient{Service: serviceName, Message: err.Error()})
			}
			if resp.StatusCode() != http.StatusOK {
				return apierrors.FromHttpStatus(serviceName, resp.StatusCode(), "datapoint", datapointEp, resp.String())
			}
			return nil
		},
		retry.Attempts(c.config.MaxAttempts),
		retry.Delay(c.config.RetryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(apierrors.IsTransient),
	)
	if err != nil {
		c.metrics.RecordIngestFailure()
		logging.WithStacktrace(log.WithField("datapoints", req.Len()), err).Error("failed to send datapoints to signalfx")
	}
}

// LoggingSender logs ingest requests instead of sending them; used outside of production.
type LoggingSender struct {
	log *log.Entry
}

func NewLoggingSender(logger *log.Entry) *LoggingSender {
	return &LoggingSender{log: logger}
}

func (s *LoggingSender) Send(req IngestRequest) {
	data, err := json.Marshal(req)
	if err != nil {
		s.log.WithError(err).Warn("failed to marshal ingest request")
		return
	}
	s.log.Debug(string(data))
}
