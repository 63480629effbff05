package cmd

import (
	"github.com/spf13/cobra"

	"github.com/G-Research/statscollector/internal/common"
	"github.com/G-Research/statscollector/internal/statscollector/configuration"
)

const (
	configFlag     = "config"
	collectorsFlag = "collectors"
	defaultConfig  = "./config/statscollector"
	envPrefix      = "STATSCOLLECTOR"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "statscollector",
		Short:        "statscollector derives task statistics and service level metrics and publishes them to SignalFx",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringSlice(
		configFlag,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)",
	)
	cmd.AddCommand(
		runCmd(),
		collectorsCmd(),
		watchCmd(),
	)
	return cmd
}

func loadConfig(cmd *cobra.Command) (configuration.StatsCollectorConfiguration, error) {
	var config configuration.StatsCollectorConfiguration
	overrides, err := cmd.Flags().GetStringSlice(configFlag)
	if err != nil {
		return config, err
	}
	if _, err := common.LoadConfig(&config, defaultConfig, overrides, envPrefix); err != nil {
		return config, err
	}
	return config, nil
}
