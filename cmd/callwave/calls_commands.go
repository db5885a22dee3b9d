package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"callwave/internal/api"
)

func newCallsCommand(ctx *commandContext) *cobra.Command {
	var states []string
	var limit int

	cmd := &cobra.Command{
		Use:   "calls",
		Short: "List tracked calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			views, err := client.Calls(cmd.Context(), states, limit)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.CallListResponse{Calls: views})
			}
			if len(views) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No calls found")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderCallTable(views))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&states, "state", nil, "Filter by state (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of calls to list")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <call-id>",
		Short: "Show one call in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			view, err := client.Call(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.CallResponse{Call: view})
			}
			printCallDetail(cmd, view)
			return nil
		},
	}
}

func renderCallTable(views []api.CallView) string {
	headers := []string{"Call ID", "State", "Packets", "Unique", "Missing", "Sentiment", "Attempts", "Updated"}

	rows := make([][]string, 0, len(views))
	for _, view := range views {
		rows = append(rows, []string{
			view.CallID,
			view.State,
			strconv.FormatInt(view.TotalPackets, 10),
			strconv.FormatInt(view.UniquePackets, 10),
			strconv.Itoa(view.MissingCount),
			view.Sentiment,
			strconv.FormatInt(view.AnalysisAttempts, 10),
			view.UpdatedAt,
		})
	}
	return renderTable(headers, rows, 3, 4, 5, 7)
}

func printCallDetail(cmd *cobra.Command, view api.CallView) {
	out := cmd.OutOrStdout()
	p := newPainter(out)

	p.section("Call " + view.CallID)
	p.field("State", stateKind(view.State), view.State)
	p.field("Packets", statusInfo,
		fmt.Sprintf("%d total, %d unique, highest %d", view.TotalPackets, view.UniquePackets, view.HighestSequence))
	if view.MissingCount > 0 {
		p.field("Missing", statusWarn, formatSequences(view.MissingSequences))
	} else {
		p.field("Missing", statusOK, "none")
	}
	if view.Sentiment != "" {
		p.field("Sentiment", statusInfo, view.Sentiment)
	}
	if view.AnalysisAttempts > 0 {
		p.field("Attempts", statusInfo, strconv.FormatInt(view.AnalysisAttempts, 10))
	}
	if view.ErrorMessage != "" {
		p.field("Error", statusError, view.ErrorMessage)
	}
	for _, ts := range []struct {
		label string
		value string
	}{
		{"Created", view.CreatedAt},
		{"Completed", view.CompletedAt},
		{"Analyzed", view.AnalyzedAt},
		{"Archived", view.ArchivedAt},
	} {
		if ts.value != "" {
			p.field(ts.label, statusInfo, ts.value)
		}
	}
	if view.Transcription != "" {
		p.blank()
		p.section("Transcription")
		fmt.Fprintln(out, view.Transcription)
	}
}

func stateKind(state string) statusKind {
	switch state {
	case "failed":
		return statusError
	case "processing_ai":
		return statusWarn
	case "completed", "archived":
		return statusOK
	default:
		return statusInfo
	}
}

func formatSequences(sequences []int64) string {
	if len(sequences) == 0 {
		return ""
	}
	parts := make([]string, 0, len(sequences))
	for _, seq := range sequences {
		parts = append(parts, strconv.FormatInt(seq, 10))
	}
	const maxShown = 12
	if len(parts) > maxShown {
		return strings.Join(parts[:maxShown], ", ") + fmt.Sprintf(" (+%d more)", len(parts)-maxShown)
	}
	return strings.Join(parts, ", ")
}
