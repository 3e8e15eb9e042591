package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"strand/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show a run's stage history and artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			view, err := client.getStatus(args[0])
			if err != nil {
				return err
			}
			if jsonOut || !shouldColorize(cmd.OutOrStdout()) {
				return writeJSON(cmd, view)
			}
			renderRunView(cmd, view)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print machine-readable output")
	return cmd
}

func renderRunView(cmd *cobra.Command, view *api.RunView) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	fmt.Fprintf(out, "Run %s\n", view.ID)
	fmt.Fprintf(out, "Sample:   %s\n", view.Sample.Name)
	fmt.Fprintf(out, "Status:   %s\n", colorizeStatus(view.Status, colorize))
	fmt.Fprintf(out, "Progress: %s\n", formatProgress(view.Progress))
	if len(view.Params) > 0 {
		pairs := make([]string, 0, len(view.Params))
		for key, value := range view.Params {
			pairs = append(pairs, key+"="+value)
		}
		fmt.Fprintf(out, "Params:   %s\n", strings.Join(pairs, " "))
	}

	if len(view.Stages) > 0 {
		rows := make([][]string, 0, len(view.Stages))
		for _, stage := range view.Stages {
			detail := stage.Artifact
			if stage.Status == "failed" {
				detail = stage.Metrics["error"]
			}
			rows = append(rows, []string{
				stageLabel(stage.Name),
				colorizeStatus(stage.Status, colorize),
				formatProgress(stage.Progress),
				stage.Time,
				detail,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Stage", "Status", "Progress", "Time", "Detail"},
			rows,
			rightAligned{2: true},
		))
	}

	if len(view.Artifacts) > 0 {
		rows := make([][]string, 0, len(view.Artifacts))
		for _, artifact := range view.Artifacts {
			rows = append(rows, []string{artifact.Kind, artifact.Path})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Artifact", "Path"},
			rows,
			nil,
		))
	}
}
