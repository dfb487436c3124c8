package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/forest6511/coffre/internal/logging"
	"github.com/forest6511/coffre/pkg/audit"
)

var (
	historyLimit      int
	historySince      time.Duration
	historyVerify     bool
	historyOlderThan  time.Duration
	errActivityLogOff = errors.New("the activity log is disabled (audit_log: false)")
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyPruneCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Show at most this many events (0 for all)")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "Only show events newer than this (e.g., 72h)")
	historyCmd.Flags().BoolVar(&historyVerify, "verify", false, "Check the log for tampering")
	historyPruneCmd.Flags().DurationVar(&historyOlderThan, "older-than", 365*24*time.Hour, "Remove months entirely older than this")
}

// historyCmd shows the activity log. It never needs the master password.
var historyCmd = &cobra.Command{
	Use:         "history",
	Short:       "Show recent vault activity",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipVaultAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		l := openActivity()
		if l == nil {
			return errActivityLogOff
		}

		if historyVerify {
			result, err := l.Verify()
			if err != nil {
				return err
			}
			if !result.Valid {
				for _, msg := range result.Errors {
					fmt.Fprintln(stdout, styleDanger.Render(msg))
				}
				return fmt.Errorf("%w (%d records checked)", audit.ErrChainBroken, result.RecordsTotal)
			}
			fmt.Fprintln(stdout, styleOK.Render(fmt.Sprintf("Activity log intact (%d records)", result.RecordsTotal)))
			return nil
		}

		now := time.Now()
		var since time.Time
		if historySince > 0 {
			since = now.Add(-historySince)
		}
		events, err := l.ListEvents(historyLimit, since)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Fprintln(stdout, "No activity recorded")
			return nil
		}
		fmt.Fprintln(stdout, renderEventTable(events, now))
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:         "prune",
	Short:       "Delete old activity log files",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipVaultAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		l := openActivity()
		if l == nil {
			return errActivityLogOff
		}
		removed, err := l.Prune(time.Now().Add(-historyOlderThan))
		if err != nil {
			return err
		}
		logging.Infof("pruned activity log: %d events older than %s", removed, historyOlderThan)
		fmt.Fprintf(stdout, "Removed %d event%s\n", removed, pluralSuffix(removed, "", "s"))
		return nil
	},
}

func renderEventTable(events []audit.Event, now time.Time) string {
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("WHEN", "OPERATION", "RESULT", "DETAIL").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			return lipgloss.NewStyle()
		})
	for i := range events {
		e := &events[i]
		when := e.Timestamp
		if ts, err := e.Time(); err == nil {
			when = humanize.RelTime(ts, now, "ago", "from now")
		}
		result := e.Result
		switch e.Result {
		case audit.ResultError:
			result = styleWarning.Render(result)
		case audit.ResultDenied:
			result = styleDanger.Render(result)
		}
		detail := e.Context["error"]
		if detail == "" {
			detail = e.Context["reason"]
		}
		t.Row(when, e.Operation, result, detail)
	}
	return t.String()
}
