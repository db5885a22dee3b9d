package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"callwave/internal/api"
)

func newCompleteCommand(ctx *commandContext) *cobra.Command {
	var failed bool
	var reason string

	cmd := &cobra.Command{
		Use:   "complete <call-id>",
		Short: "Signal end of stream for a call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			view, err := client.Complete(cmd.Context(), args[0], failed, reason)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.CallResponse{Call: view})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Call %s is now %s\n", view.CallID, view.State)
			if view.MissingCount > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Warning: %d sequence(s) missing: %s\n",
					view.MissingCount, formatSequences(view.MissingSequences))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failed, "failed", false, "Mark the call failed instead of completed")
	cmd.Flags().StringVar(&reason, "reason", "", "Failure reason (with --failed)")
	return cmd
}

func newArchiveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <call-id>",
		Short: "Archive a completed or failed call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			view, err := client.Archive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.CallResponse{Call: view})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Call %s archived\n", view.CallID)
			return nil
		},
	}
}
