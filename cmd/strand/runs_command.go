package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List all known runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			summaries, err := client.listRuns()
			if err != nil {
				return err
			}
			if jsonOut || !shouldColorize(cmd.OutOrStdout()) {
				return writeJSON(cmd, summaries)
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No runs yet")
				return nil
			}
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(summaries))
			for _, summary := range summaries {
				rows = append(rows, []string{
					summary.ID,
					summary.SampleName,
					colorizeStatus(summary.Status, colorize),
					formatProgress(summary.Progress),
					summary.CreatedAt,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Sample", "Status", "Progress", "Created"},
				rows,
				rightAligned{3: true},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print machine-readable output")
	return cmd
}
