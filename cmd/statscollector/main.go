package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/G-Research/statscollector/cmd/statscollector/cmd"
	"github.com/G-Research/statscollector/internal/common/logging"
)

func main() {
	logging.ConfigureCommandLineLogging()
	root := cmd.RootCmd()
	if err := root.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
