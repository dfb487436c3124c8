package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/forest6511/coffre/pkg/throttle"
	"github.com/forest6511/coffre/pkg/vault"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

// statusCmd reports on the vault file and the attempt throttle without
// asking for the master password.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault file and unlock throttle status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		label := func(s string) string { return styleLabel.Render(fmt.Sprintf("%-12s", s)) }

		fmt.Fprintln(stdout, label("Vault"), v.Path())
		info, err := os.Stat(v.Path())
		switch {
		case os.IsNotExist(err):
			fmt.Fprintln(stdout, label("State"), styleWarning.Render("not initialized (run 'coffre init')"))
		case err != nil:
			return fmt.Errorf("failed to stat vault: %w", err)
		default:
			fmt.Fprintln(stdout, label("Size"), humanize.Bytes(uint64(info.Size())))
			fmt.Fprintln(stdout, label("Modified"), humanize.RelTime(info.ModTime(), now, "ago", "from now"))
		}

		if disk, err := vault.CheckDiskSpace(v.Path()); err == nil {
			line := fmt.Sprintf("%s free (%d%% used)", humanize.Bytes(disk.Available), disk.UsedPct)
			if disk.UsedPct >= vault.DiskWarningPercent {
				line = styleWarning.Render(line)
			}
			fmt.Fprintln(stdout, label("Disk"), line)
		}

		fmt.Fprintln(stdout, label("Throttle"), cfg.ThrottleStore)
		fmt.Fprintln(stdout, label("Attempts"), throttleSummary(v.Throttle().Status(cmd.Context()), now))
		return nil
	},
}

// throttleSummary describes the throttle state for humans.
func throttleSummary(state throttle.State, now time.Time) string {
	if state.Locked(now) {
		return styleDanger.Render(fmt.Sprintf("locked, retry in %d minutes", state.RemainingMinutes(now)))
	}
	if state.Attempts == 0 {
		return styleOK.Render(fmt.Sprintf("0/%d failed", throttle.MaxAttempts))
	}
	return styleWarning.Render(fmt.Sprintf("%d/%d failed", state.Attempts, throttle.MaxAttempts))
}
