package queue

import (
	"context"
	"net/http"

	"github.com/avast/retry-go"
	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/statscollector/internal/common/apierrors"
	"github.com/G-Research/statscollector/internal/statscollector/configuration"
	"github.com/G-Research/statscollector/internal/statscollector/metrics"
)

const serviceName = "queue"

type statusResponse struct {
	Status TaskStatus `json:"status"`
}

type workerTypesResponse struct {
	WorkerTypes []struct {
		WorkerType string `json:"workerType"`
	} `json:"workerTypes"`
	ContinuationToken string `json:"continuationToken"`
}

// RestClient talks to the queue's REST API. Worker type lists change rarely and are cached.
type RestClient struct {
	client      *resty.Client
	config      configuration.QueueConfig
	workerTypes *cache.Cache
	metrics     *metrics.Metrics
}

func NewRestClient(config configuration.QueueConfig, m *metrics.Metrics) *RestClient {
	client := resty.New().
		SetBaseURL(config.RootUrl+"/api/queue/v1").
		SetTimeout(config.RequestTimeout).
		SetHeader("Accept", "application/json")
	return &RestClient{
		client:      client,
		config:      config,
		workerTypes: cache.New(config.WorkerTypeCacheExpiry, 2*config.WorkerTypeCacheExpiry),
		metrics:     m,
	}
}

func (c *RestClient) Status(ctx context.Context, taskId string) (*TaskStatus, error) {
	var body statusResponse
	err := c.get(ctx, "/task/{taskId}/status", map[string]string{"taskId": taskId}, nil, "task", taskId, &body)
	if err != nil {
		return nil, err
	}
	return &body.Status, nil
}

func (c *RestClient) WorkerTypes(ctx context.Context, provisionerId string) ([]string, error) {
	if cached, ok := c.workerTypes.Get(provisionerId); ok {
		return cached.([]string), nil
	}

	var result []string
	continuationToken := ""
	for {
		var body workerTypesResponse
		query := map[string]string{}
		if continuationToken != "" {
			query["continuationToken"] = continuationToken
		}
		err := c.get(ctx, "/provisioners/{provisionerId}/worker-types",
			map[string]string{"provisionerId": provisionerId}, query, "provisioner", provisionerId, &body)
		if err != nil {
			return nil, err
		}
		for _, wt := range body.WorkerTypes {
			result = append(result, wt.WorkerType)
		}
		if body.ContinuationToken == "" {
			break
		}
		continuationToken = body.ContinuationToken
	}

	c.workerTypes.SetDefault(provisionerId, result)
	return result, nil
}

func (c *RestClient) get(ctx context.Context, path string, pathParams, queryParams map[string]string, resourceType, value string, result interface{}) error {
	return retry.Do(
		func() error {
			c.metrics.RecordQuery(serviceName)
			resp, err := c.client.R().
				SetContext(ctx).
				SetPathParams(pathParams).
				SetQueryParams(queryParams).
				SetResult(result).
				Get(path)
			if err != nil {
				return errors.WithStack(&apierrors.ErrTransient{Service: serviceName, Message: err.Error()})
			}
			if resp.StatusCode() != http.StatusOK {
				return apierrors.FromHttpStatus(serviceName, resp.StatusCode(), resourceType, value, resp.String())
			}
			return nil
		},
		retry.Attempts(c.config.MaxAttempts),
		retry.Delay(c.config.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(apierrors.IsTransient),
		retry.OnRetry(func(n uint, err error) {
			c.metrics.RecordQueryError(serviceName)
			log.WithError(err).Debugf("retrying queue request %s (attempt %d)", path, n+1)
		}),
	)
}
