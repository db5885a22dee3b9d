package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"callwave/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and scheduler status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				if errors.Is(err, ErrDaemonUnavailable) {
					return fmt.Errorf("daemon is not reachable; is callwaved running? (%v)", err)
				}
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}
			printStatus(cmd, status)
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, status api.DaemonStatus) {
	p := newPainter(cmd.OutOrStdout())

	p.section("Callwave Daemon")
	p.field("Daemon", boolKind(status.Running), fmt.Sprintf("pid %d", status.PID))
	p.field("Scheduler", boolKind(status.Scheduler.Running), schedulerSummary(status.Scheduler))
	if status.Scheduler.LastError != "" {
		p.field("Last Error", statusError, status.Scheduler.LastError)
	}
	p.field("Subscribers", statusInfo, fmt.Sprintf("%d", status.Subscribers))
	p.field("Database", statusInfo, status.DBPath)

	if len(status.Scheduler.QueueStats) > 0 {
		p.blank()
		p.section("Calls by State")
		states := make([]string, 0, len(status.Scheduler.QueueStats))
		for state := range status.Scheduler.QueueStats {
			states = append(states, state)
		}
		sort.Strings(states)
		for _, state := range states {
			p.field(state, statusInfo, fmt.Sprintf("%d", status.Scheduler.QueueStats[state]))
		}
	}
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}

func schedulerSummary(s api.SchedulerStatus) string {
	return fmt.Sprintf("processed %d, failed %d", s.ProcessedCount, s.FailedCount)
}
