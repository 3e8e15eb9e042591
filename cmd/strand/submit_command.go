package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var sampleName string
	var params []string
	var noUpload bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "submit <fastq...>",
		Short: "Upload FASTQ files and admit a processing run",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			paramMap := map[string]string{}
			for _, pair := range params {
				key, value, found := strings.Cut(pair, "=")
				if !found || strings.TrimSpace(key) == "" {
					return fmt.Errorf("invalid --param %q (expected key=value)", pair)
				}
				paramMap[strings.TrimSpace(key)] = strings.TrimSpace(value)
			}

			name := strings.TrimSpace(sampleName)
			if name == "" {
				name = sampleNameFromFile(args[0])
			}

			files := args
			if !noUpload {
				stored, err := client.upload(name, args)
				if err != nil {
					return err
				}
				files = stored
			}

			jobID, err := client.submitRun(name, files, paramMap)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, map[string]string{"job_id": jobID})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Admitted run %s for sample %s\n", jobID, name)
			fmt.Fprintf(cmd.OutOrStdout(), "Track it with: strand status %s\n", jobID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sampleName, "sample", "s", "", "Sample name (defaults to the first file's stem)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Run parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&noUpload, "no-upload", false, "Submit server-local paths without uploading")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print machine-readable output")
	return cmd
}

func sampleNameFromFile(path string) string {
	name := path
	if idx := strings.LastIndexAny(name, "/\\"); idx >= 0 {
		name = name[idx+1:]
	}
	for _, suffix := range []string{".gz", ".fastq", ".fq"} {
		name = strings.TrimSuffix(name, suffix)
	}
	return name
}
