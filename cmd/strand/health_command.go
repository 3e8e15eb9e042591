package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"strand/internal/preflight"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check daemon reachability and the local tool environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			checks := preflight.RunAll(cmd.Context(), cfg)

			var daemonHealth map[string]any
			var daemonErr error
			if client, err := ctx.client(); err == nil {
				daemonHealth, daemonErr = client.health()
			} else {
				daemonErr = err
			}

			if jsonOut {
				payload := map[string]any{
					"daemon":    daemonHealth,
					"preflight": checks,
				}
				if daemonErr != nil {
					payload["daemon_error"] = daemonErr.Error()
				}
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			if daemonErr != nil {
				fmt.Fprintf(out, "Daemon:   unreachable (%v)\n", daemonErr)
			} else {
				fmt.Fprintf(out, "Daemon:   ok=%v time=%v\n", daemonHealth["ok"], daemonHealth["time"])
			}
			for _, check := range checks {
				status := "FAIL"
				if check.Passed {
					status = "OK"
				}
				fmt.Fprintf(out, "%-6s %-20s %s\n", status, check.Name, check.Detail)
			}
			if !preflight.Passed(checks) {
				return fmt.Errorf("one or more environment checks failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print machine-readable output")
	return cmd
}
