package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"callwave/internal/report"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var output string
	var states []string
	var limit int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export call history to an xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(output)
			if target == "" {
				return fmt.Errorf("--output is required")
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			views, err := client.Calls(cmd.Context(), states, limit)
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}

			if err := report.WriteWorkbook(target, views, status.Scheduler.QueueStats); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d call(s) to %s\n", len(views), target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Workbook destination path")
	cmd.Flags().StringSliceVar(&states, "state", nil, "Filter by state (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of calls to export")
	return cmd
}
