package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/G-Research/statscollector/internal/common/app"
	"github.com/G-Research/statscollector/internal/statscollector/listener"
	"github.com/G-Research/statscollector/internal/statscollector/metrics"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the task messages received by the listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			dispatcher, err := listener.NewDispatcher(config.Listener.DedupCacheSize, metrics.New(prometheus.NewRegistry()))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			dispatcher.Register("watch", listener.HandlerFunc(func(_ context.Context, msg *listener.TaskMessage) error {
				runId := "-"
				if msg.RunId != nil {
					runId = fmt.Sprint(*msg.RunId)
				}
				fmt.Fprintf(out, "%s %s run=%s pool=%s.%s\n",
					msg.Action, msg.TaskId, runId, msg.Status.ProvisionerId, msg.Status.WorkerType)
				if verbose {
					for _, run := range msg.Status.Runs {
						fmt.Fprintf(out, "  run %d: %s reasonCreated=%s reasonResolved=%s\n",
							run.RunId, run.State, run.ReasonCreated, run.ReasonResolved)
					}
				}
				return nil
			}))
			transport, err := listener.NewTransport(config.Listener)
			if err != nil {
				return err
			}
			defer transport.Close()
			return transport.Run(app.CreateContextWithShutdown(), dispatcher)
		},
	}
	cmd.Flags().Bool("verbose", false, "Print the runs of each task.")
	return cmd
}
