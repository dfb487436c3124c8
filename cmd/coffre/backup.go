package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/forest6511/coffre/pkg/audit"
	"github.com/forest6511/coffre/pkg/backup"
)

var (
	backupOutput string
	backupForce  bool

	restoreDryRun     bool
	restoreVerifyOnly bool
	restoreOnConflict string
)

func init() {
	rootCmd.AddCommand(backupCmd, restoreCmd)

	backupCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "Output file path (default: next to the vault, timestamped)")
	backupCmd.Flags().BoolVarP(&backupForce, "force", "f", false, "Overwrite existing file")

	restoreCmd.Flags().BoolVar(&restoreDryRun, "dry-run", false, "Show what would be restored without making changes")
	restoreCmd.Flags().BoolVar(&restoreVerifyOnly, "verify-only", false, "Only check that the backup opens")
	restoreCmd.Flags().StringVar(&restoreOnConflict, "on-conflict", "error", "Conflict resolution: skip, overwrite, error")
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a copy of the vault to another file",
	Long: `Write a copy of the vault to another file. The copy is itself a vault,
encrypted with the current master password.

Examples:
  # Backup next to the vault file
  coffre backup

  # Backup to a given file, replacing it
  coffre backup -o /media/usb/coffre.vault --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(cmd.Context()); err != nil {
			return err
		}

		path, err := backup.Backup(v, backup.BackupOptions{Output: backupOutput, Force: backupForce})
		if err != nil {
			return err
		}
		recordEvent(audit.OpBackup, "", nil)
		fmt.Fprintf(stdout, "Backup written to %s\n", path)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-file>",
	Short: "Merge entries from a backup into the vault",
	Long: `Merge the entries of a backup (or any other vault file) into the vault.
Entries are matched by id. The backup password is asked separately since it
may differ from the current master password.

Examples:
  # Verify a backup opens without restoring
  coffre restore backup.vault --verify-only

  # Preview a restore
  coffre restore backup.vault --dry-run --on-conflict=overwrite

  # Restore, keeping current versions of entries present in both
  coffre restore backup.vault --on-conflict=skip`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := backup.ParseConflictMode(restoreOnConflict)
		if err != nil {
			return err
		}

		if restoreVerifyOnly {
			password, err := readPassword("Backup password: ")
			if err != nil {
				return err
			}
			result, err := backup.Verify(cmd.Context(), v, args[0], password)
			if err != nil {
				recordEvent(audit.OpRestore, "", err)
				return err
			}
			if !result.Valid {
				return fmt.Errorf("backup verification failed: %s", result.Error)
			}
			fmt.Fprintln(stdout, styleOK.Render("Backup is valid"))
			fmt.Fprintf(stdout, "  Entries:  %d\n", result.EntryCount)
			fmt.Fprintf(stdout, "  Size:     %s\n", humanize.Bytes(uint64(result.Size)))
			fmt.Fprintf(stdout, "  Modified: %s\n", humanize.RelTime(result.ModTime, time.Now(), "ago", "from now"))
			return nil
		}

		if err := ensureUnlocked(cmd.Context()); err != nil {
			return err
		}
		password, err := readPassword("Backup password: ")
		if err != nil {
			return err
		}

		result, err := backup.Restore(cmd.Context(), v, args[0], password, backup.RestoreOptions{OnConflict: mode, DryRun: restoreDryRun})
		if err != nil {
			recordEvent(audit.OpRestore, "", err)
			return err
		}

		verb := "Restored"
		if result.DryRun {
			verb = "Would restore"
		} else {
			recordEvent(audit.OpRestore, "", nil)
		}
		fmt.Fprintf(stdout, "%s: %d added, %d replaced, %d skipped\n", verb, result.Added, result.Replaced, result.Skipped)
		return nil
	},
}
