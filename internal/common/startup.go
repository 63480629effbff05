package common

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	commonconfig "github.com/G-Research/statscollector/internal/common/config"
	"github.com/G-Research/statscollector/internal/common/health"
	"github.com/G-Research/statscollector/internal/common/logging"
)

const baseConfigFileName = "config"

// LoadConfig reads config.yaml from defaultPath, merges each of overrideConfigs on top
// and then applies environment variables named envPrefix_SECTION_KEY.
func LoadConfig(config interface{}, defaultPath string, overrideConfigs []string, envPrefix string) (*viper.Viper, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigName(baseConfigFileName)
	v.AddConfigPath(defaultPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "error reading base config path=%s", defaultPath)
	}
	log.Infof("Read base config from %s", v.ConfigFileUsed())

	for _, overrideConfig := range overrideConfigs {
		v.SetConfigFile(overrideConfig)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "error reading config from %s", overrideConfig)
		}
		log.Infof("Read config from %s", v.ConfigFileUsed())
	}

	v.SetEnvKeyReplacer(strings.NewReplacer("::", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.Unmarshal(config, commonconfig.CustomHooks...); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := commonconfig.Validate(config); err != nil {
		return nil, err
	}
	return v, nil
}

func ConfigureLogging(config logging.Config) error {
	return logging.Configure(config)
}

// ServeMetrics exposes the default prometheus registry on /metrics and checker on /health.
// The returned function shuts the server down.
func ServeMetrics(port uint16, checker health.Checker) (shutdown func()) {
	return ServeMetricsFor(port, prometheus.DefaultGatherer, checker)
}

func ServeMetricsFor(port uint16, gatherer prometheus.Gatherer, checker health.Checker) (shutdown func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	if checker != nil {
		health.SetupHttpMux(mux, checker)
	}
	return ServeHttp(port, mux)
}

func ServeHttp(port uint16, mux http.Handler) (shutdown func()) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting http server listening on %d", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.WithStacktrace(log.NewEntry(log.StandardLogger()), err).Error("http server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Printf("Stopping http server listening on %d", port)
		if err := srv.Shutdown(ctx); err != nil {
			logging.WithStacktrace(log.NewEntry(log.StandardLogger()), err).Warn("http server shutdown failed")
		}
	}
}
