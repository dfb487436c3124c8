package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/coffre/internal/logging"
	"github.com/forest6511/coffre/pkg/audit"
	"github.com/forest6511/coffre/pkg/importer"
	"github.com/forest6511/coffre/pkg/vault"
)

var (
	importDryRun   bool
	importCategory string
	importTag      string
)

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Show what would be imported without making changes")
	importCmd.Flags().StringVar(&importCategory, "category", "", "Put every imported entry in this category")
	importCmd.Flags().StringVar(&importTag, "tag", "", "Add tag to all imported entries")
}

var importCmd = &cobra.Command{
	Use:   "import <source> <file>",
	Short: "Import entries from another password manager",
	Long: `Import entries from an export of another password manager.

Supported sources:
  1password   CSV export (Title,Website,Username,Password,...)
  bitwarden   unencrypted JSON export
  lastpass    CSV export (url,username,password,...)

Folders become categories, items without one go to "` + importer.DefaultCategory + `".
TOTP seeds, card security codes and hidden fields are not imported.
Names already present in the vault get a numeric suffix.

Examples:
  # Preview a Bitwarden import
  coffre import bitwarden bitwarden_export.json --dry-run

  # Import a LastPass export into one category
  coffre import lastpass lastpass.csv --category "Utiles" --tag lastpass`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		parser, err := importer.GetParser(importer.Source(strings.ToLower(args[0])))
		if err != nil {
			return fmt.Errorf("invalid source '%s': must be one of %v", args[0], importer.ValidSources())
		}

		data, err := readImportFile(args[1])
		if err != nil {
			return err
		}

		if err := ensureUnlocked(cmd.Context()); err != nil {
			return err
		}
		existing, err := v.Entries()
		if err != nil {
			return err
		}
		names := make([]string, len(existing))
		for i := range existing {
			names[i] = existing[i].Name
		}

		result, err := parser.Parse(data, importer.ParseOptions{Category: importCategory, ExistingNames: names})
		if err != nil {
			return fmt.Errorf("failed to parse %s file: %w", args[0], err)
		}

		for _, warning := range result.Warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
		for _, skipped := range result.Skipped {
			fmt.Fprintf(os.Stderr, "Skipped: %s (%s)\n", skipped.OriginalName, skipped.Reason)
		}
		if len(result.Entries) == 0 {
			fmt.Fprintln(stdout, "No entries found in file")
			return nil
		}

		added, err := importEntries(result.Entries)
		if err != nil {
			return err
		}

		if importDryRun {
			fmt.Fprintf(stdout, "Would import %d entr%s:\n", len(added), pluralSuffix(len(added), "y", "ies"))
			fmt.Fprintln(stdout, renderEntryTable(added, time.Now()))
			return nil
		}

		if err := v.ReplaceEntries(append(existing, added...)); err != nil {
			recordEvent(audit.OpImport, "", err)
			return err
		}
		recordEvent(audit.OpImport, "", nil)
		logging.Infof("imported %d entries from %s export %s", len(added), args[0], args[1])
		fmt.Fprintf(stdout, "Imported %d entr%s from %s\n", len(added), pluralSuffix(len(added), "y", "ies"), args[0])
		return nil
	},
}

// importEntries turns parsed items into new vault entries.
func importEntries(items []*importer.ImportedEntry) ([]vault.Entry, error) {
	now := time.Now()
	added := make([]vault.Entry, 0, len(items))
	for _, item := range items {
		in := item.Input
		if importTag != "" {
			in.Tags = append(in.Tags, importTag)
		}
		e, err := vault.NewEntry(in, now)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", item.OriginalName, err)
		}
		added = append(added, *e)
	}
	return added, nil
}

// readImportFile reads an export file, refusing symlinks.
func readImportFile(path string) ([]byte, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to access file: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("security: refusing to read symlink: %s", absPath)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}
