package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pinktranscriber/internal/journal"
	"pinktranscriber/internal/logging"
)

var stateTitle = cases.Title(language.English)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent transcription requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			stdout := cmd.OutOrStdout()
			if cfg == nil || !cfg.Journal.Enabled {
				fmt.Fprintln(stdout, "Request journal is disabled")
				return nil
			}

			j, err := journal.Open(cfg.Journal.Path, logging.NewNop())
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer j.Close()

			entries, err := j.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("read journal: %w", err)
			}
			if len(entries) == 0 {
				fmt.Fprintln(stdout, "No requests recorded")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					entry.QueuedAt.Local().Format("2006-01-02 15:04:05"),
					stateTitle.String(entry.State),
					formatEntryDuration(entry),
					entry.SourcePath,
					entry.ErrorMessage,
				})
			}
			fmt.Fprint(stdout, renderTable(
				[]string{"Queued", "State", "Duration", "Source", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintln(stdout)
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of requests to show")

	historyCmd.AddCommand(newHistoryStatsCommand(ctx))
	return historyCmd
}

func newHistoryStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize journaled requests by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			stdout := cmd.OutOrStdout()
			if cfg == nil || !cfg.Journal.Enabled {
				fmt.Fprintln(stdout, "Request journal is disabled")
				return nil
			}
			return renderJournalStats(cmd, cfg, shouldColorize(stdout))
		},
	}
}

func journalStateRows(stats journal.Stats) [][]string {
	rows := make([][]string, 0, 4)
	appendRow := func(state string, count int) {
		if count == 0 {
			return
		}
		rows = append(rows, []string{stateTitle.String(state), strconv.Itoa(count)})
	}
	appendRow(journal.StateQueued, stats.Queued)
	appendRow(journal.StateRunning, stats.Running)
	appendRow(journal.StateDone, stats.Done)
	appendRow(journal.StateFailed, stats.Failed)
	return rows
}

func formatEntryDuration(entry journal.Entry) string {
	if entry.Duration <= 0 {
		return ""
	}
	return entry.Duration.Round(time.Millisecond).String()
}
