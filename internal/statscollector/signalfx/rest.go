package signalfx

import (
	"context"
	"net/http"
	"strconv"

	"github.com/avast/retry-go"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/statscollector/internal/common/apierrors"
	"github.com/G-Research/statscollector/internal/statscollector/configuration"
	"github.com/G-Research/statscollector/internal/statscollector/metrics"
)

const (
	serviceName        = "signalfx"
	tokenHeader        = "X-SF-Token"
	timeSeriesWindowEp = "/v1/timeserieswindow"
)

type timeSeriesWindowResponse struct {
	// Keyed by an opaque time series id; one entry per matching time series.
	Data   map[string][][2]float64 `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// RestClient is a client of the parts of the SignalFx REST API that the collectors use.
type RestClient struct {
	client      *resty.Client
	maxAttempts uint
	config      configuration.SignalFxConfig
	metrics     *metrics.Metrics
}

func NewRestClient(config configuration.SignalFxConfig, m *metrics.Metrics) *RestClient {
	client := resty.New().
		SetBaseURL(config.RestUrl).
		SetTimeout(config.RequestTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader(tokenHeader, config.ApiToken)
	return &RestClient{
		client:      client,
		maxAttempts: config.MaxAttempts,
		config:      config,
		metrics:     m,
	}
}

// TimeSeriesWindow calls /v1/timeserieswindow. The query must match at most one time
// series; the resolution must be one SignalFx supports or the result is empty.
func (c *RestClient) TimeSeriesWindow(ctx context.Context, query string, startMs, endMs, resolutionMs int64) ([]Point, error) {
	var body timeSeriesWindowResponse
	err := retry.Do(
		func() error {
			c.metrics.RecordQuery(serviceName)
			resp, err := c.client.R().
				SetContext(ctx).
				SetQueryParams(map[string]string{
					"query":      query,
					"startMs":    strconv.FormatInt(startMs, 10),
					"endMs":      strconv.FormatInt(endMs, 10),
					"resolution": strconv.FormatInt(resolutionMs, 10),
				}).
				SetResult(&body).
				Get(timeSeriesWindowEp)
			if err != nil {
				return errors.WithStack(&apierrors.ErrTransient{Service: serviceName, Message: err.Error()})
			}
			if resp.StatusCode() != http.StatusOK {
				return apierrors.FromHttpStatus(serviceName, resp.StatusCode(), "timeseries", query, resp.String())
			}
			return nil
		},
		retry.Attempts(c.maxAttempts),
		retry.Delay(c.config.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(apierrors.IsTransient),
		retry.OnRetry(func(n uint, err error) {
			c.metrics.RecordQueryError(serviceName)
			log.WithError(err).Debugf("retrying timeserieswindow query %s (attempt %d)", query, n+1)
		}),
	)
	if err != nil {
		return nil, err
	}
	return pointsFromResponse(query, &body)
}

func pointsFromResponse(query string, body *timeSeriesWindowResponse) ([]Point, error) {
	switch len(body.Data) {
	case 0:
		// Errors are reported with 200 OK and no data.
		if len(body.Errors) > 0 {
			return nil, errors.Errorf("error from signalfx for query %s: %s", query, body.Errors[0].Message)
		}
		return nil, nil
	case 1:
	default:
		return nil, errors.WithStack(&apierrors.ErrInvalidArgument{
			Name:    "query",
			Value:   query,
			Message: "multiple time series returned",
		})
	}

	var points []Point
	for _, series := range body.Data {
		points = make([]Point, 0, len(series))
		for _, dp := range series {
			points = append(points, Point{Ts: int64(dp[0]), Value: dp[1]})
		}
	}
	return points, nil
}
