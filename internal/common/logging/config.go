package logging

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/weaveworks/promrus"
)

const (
	FormatText = "text"
	FormatJson = "json"
)

type Config struct {
	// Log level, e.g. info, debug.
	Level string
	// Either text or json.
	Format string
	// Count log lines per level in prometheus.
	Prometheus bool
}

// Configure sets up the global logrus logger.
func Configure(config Config) error {
	level := log.InfoLevel
	if config.Level != "" {
		parsed, err := log.ParseLevel(config.Level)
		if err != nil {
			return errors.WithStack(err)
		}
		level = parsed
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	switch strings.ToLower(config.Format) {
	case "", FormatText:
		log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	case FormatJson:
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return errors.Errorf("unknown log format %q", config.Format)
	}

	if config.Prometheus {
		log.AddHook(promrus.MustNewPrometheusHook())
	}
	return nil
}

// ConfigureCommandLineLogging sets up plain message-only output for CLI subcommands.
func ConfigureCommandLineLogging() {
	commandLineFormatter := new(CommandLineFormatter)
	log.SetFormatter(commandLineFormatter)
	log.SetOutput(os.Stdout)
}
