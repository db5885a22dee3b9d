// Package report exports call history into an xlsx workbook.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"callwave/internal/api"
	"callwave/internal/calls"
)

const (
	callsSheet   = "Calls"
	summarySheet = "Summary"
)

var callsHeader = []any{
	"Call ID", "State", "Total Packets", "Unique Packets", "Highest Sequence",
	"Missing Count", "Sentiment", "Analysis Attempts", "Error", "Created", "Completed", "Analyzed",
}

// WriteWorkbook renders the given call views and per-state counts into an
// xlsx file at path, one row per call plus a summary sheet.
func WriteWorkbook(path string, views []api.CallView, stats map[string]int) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(callsSheet); err != nil {
		return fmt.Errorf("create calls sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("remove default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeCallsSheet(f, views, headerStyle); err != nil {
		return err
	}
	if err := writeSummarySheet(f, views, stats, headerStyle); err != nil {
		return err
	}

	if index, err := f.GetSheetIndex(callsSheet); err == nil {
		f.SetActiveSheet(index)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeCallsSheet(f *excelize.File, views []api.CallView, headerStyle int) error {
	if err := f.SetSheetRow(callsSheet, "A1", &callsHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(callsHeader))
	if err := f.SetCellStyle(callsSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	_ = f.SetColWidth(callsSheet, "A", "A", 28)
	_ = f.SetColWidth(callsSheet, "J", "L", 24)

	for i, view := range views {
		row := []any{
			view.CallID,
			view.State,
			view.TotalPackets,
			view.UniquePackets,
			view.HighestSequence,
			view.MissingCount,
			view.Sentiment,
			view.AnalysisAttempts,
			view.ErrorMessage,
			view.CreatedAt,
			view.CompletedAt,
			view.AnalyzedAt,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row coordinates: %w", err)
		}
		if err := f.SetSheetRow(callsSheet, cell, &row); err != nil {
			return fmt.Errorf("write call row: %w", err)
		}
	}
	return nil
}

func writeSummarySheet(f *excelize.File, views []api.CallView, stats map[string]int, headerStyle int) error {
	if err := f.SetSheetRow(summarySheet, "A1", &[]any{"State", "Count"}); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	if err := f.SetCellStyle(summarySheet, "A1", "B1", headerStyle); err != nil {
		return fmt.Errorf("style summary header: %w", err)
	}

	// Known states in lifecycle order first, then anything unexpected.
	ordered := make([]string, 0, len(stats))
	for _, status := range calls.AllStatuses() {
		ordered = append(ordered, string(status))
	}
	var extras []string
	for state := range stats {
		known := false
		for _, status := range calls.AllStatuses() {
			if state == string(status) {
				known = true
				break
			}
		}
		if !known {
			extras = append(extras, state)
		}
	}
	sort.Strings(extras)
	ordered = append(ordered, extras...)

	rowIdx := 2
	for _, state := range ordered {
		count, ok := stats[state]
		if !ok && !isKnownState(state) {
			continue
		}
		row := []any{state, count}
		cell, err := excelize.CoordinatesToCellName(1, rowIdx)
		if err != nil {
			return fmt.Errorf("summary coordinates: %w", err)
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
		rowIdx++
	}

	analyzed := 0
	failed := 0
	for _, view := range views {
		if view.AnalyzedAt != "" {
			analyzed++
		}
		if view.State == string(calls.StatusFailed) {
			failed++
		}
	}
	totals := [][]any{
		{"Exported Calls", len(views)},
		{"Analyzed", analyzed},
		{"Failed", failed},
	}
	rowIdx++ // blank separator row
	for _, row := range totals {
		r := row
		cell, err := excelize.CoordinatesToCellName(1, rowIdx)
		if err != nil {
			return fmt.Errorf("totals coordinates: %w", err)
		}
		if err := f.SetSheetRow(summarySheet, cell, &r); err != nil {
			return fmt.Errorf("write totals row: %w", err)
		}
		rowIdx++
	}
	return nil
}

func isKnownState(state string) bool {
	_, ok := calls.ParseStatus(strings.TrimSpace(state))
	return ok
}
