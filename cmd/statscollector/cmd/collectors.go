package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/G-Research/statscollector/internal/statscollector"
)

func collectorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collectors",
		Short: "List the collectors available with the configured profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			registry, err := statscollector.NewRegistry(config)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tREQUIRES\tTEST ONLY\tDESCRIPTION")
			for _, info := range registry.Declarations() {
				requires := make([]string, len(info.Requires))
				for i, c := range info.Requires {
					requires[i] = string(c)
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", info.Name, strings.Join(requires, ","), info.TestOnly, info.Description)
			}
			return w.Flush()
		},
	}
}
