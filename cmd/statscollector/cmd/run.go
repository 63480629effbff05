package cmd

import (
	"github.com/spf13/cobra"

	"github.com/G-Research/statscollector/internal/common"
	"github.com/G-Research/statscollector/internal/common/app"
	"github.com/G-Research/statscollector/internal/statscollector"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the collectors until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := common.ConfigureLogging(config.Logging); err != nil {
				return err
			}
			if cmd.Flags().Changed(collectorsFlag) {
				collectors, err := cmd.Flags().GetStringSlice(collectorsFlag)
				if err != nil {
					return err
				}
				config.Collectors = collectors
			}
			return statscollector.Run(app.CreateContextWithShutdown(), config)
		},
	}
	cmd.Flags().StringSlice(collectorsFlag, []string{}, "Collectors to run, overriding the configured list; all collectors are run if empty")
	return cmd
}
