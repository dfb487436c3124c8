package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/forest6511/coffre/internal/cli"
	"github.com/forest6511/coffre/internal/logging"
	"github.com/forest6511/coffre/pkg/audit"
	"github.com/forest6511/coffre/pkg/vault"
)

// List command flags
var (
	listSearch   string
	listCategory string
	listTag      string
	listSort     string
)

// Entry form flags, shared by add and edit
var (
	entryName      string
	entryLogin     string
	entryCategory  string
	entryURL       string
	entryNotes     string
	entryTags      string
	entryGenerate  bool
	entryLength    int
	editSecret     bool
	showReveal     bool
	removeForce    bool
	copyClearAfter time.Duration
)

func init() {
	rootCmd.AddCommand(listCmd, showCmd, addCmd, editCmd, removeCmd, copyCmd, categoriesCmd)

	listCmd.Flags().StringVarP(&listSearch, "search", "s", "", "Search name, login, notes and url")
	listCmd.Flags().StringVar(&listCategory, "category", "", "Filter by category")
	listCmd.Flags().StringVar(&listTag, "tag", "", "Filter by tag")
	listCmd.Flags().StringVar(&listSort, "sort", "", "Sort by name, category, createdAt or updatedAt")

	for _, cmd := range []*cobra.Command{addCmd, editCmd} {
		cmd.Flags().StringVar(&entryName, "name", "", "Entry name")
		cmd.Flags().StringVar(&entryLogin, "login", "", "Login or username")
		cmd.Flags().StringVar(&entryCategory, "category", "", "Category")
		cmd.Flags().StringVar(&entryURL, "url", "", "Website URL (http or https)")
		cmd.Flags().StringVar(&entryNotes, "notes", "", "Free-form notes")
		cmd.Flags().StringVar(&entryTags, "tags", "", "Comma-separated tags (e.g., perso,maison)")
		cmd.Flags().BoolVarP(&entryGenerate, "generate", "g", false, "Generate a random secret")
		cmd.Flags().IntVarP(&entryLength, "length", "l", defaultPasswordLength, "Generated secret length")
	}
	editCmd.Flags().BoolVar(&editSecret, "secret", false, "Prompt for a new secret")

	showCmd.Flags().BoolVar(&showReveal, "reveal", false, "Print the secret in clear")
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "Skip confirmation prompt")
	copyCmd.Flags().DurationVar(&copyClearAfter, "clear", 0, "Clear the clipboard after this delay (e.g., 30s)")
}

// listCmd lists entries
var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Lists entries",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sortBy, err := vault.ParseSortBy(listSort)
		if err != nil {
			return err
		}
		if err := ensureUnlocked(cmd.Context()); err != nil {
			return err
		}

		entries, err := v.Entries()
		if err != nil {
			return err
		}
		entries = vault.Filter(entries, vault.Query{Text: listSearch, Category: listCategory, Tag: listTag})
		vault.Sort(entries, sortBy)

		if len(entries) == 0 {
			fmt.Fprintln(stdout, "No entries found")
			return nil
		}
		fmt.Fprintln(stdout, renderEntryTable(entries, time.Now()))
		return nil
	},
}

func renderEntryTable(entries []vault.Entry, now time.Time) string {
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("ID", "NAME", "CATEGORY", "LOGIN", "TAGS", "UPDATED").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			return lipgloss.NewStyle()
		})
	for i := range entries {
		e := &entries[i]
		t.Row(cli.ShortID(e.ID), e.Name, e.Category, e.Login,
			strings.Join(e.Tags, ","), humanize.RelTime(e.UpdatedAt, now, "ago", "from now"))
	}
	return t.String()
}

// showCmd prints one entry
var showCmd = &cobra.Command{
	Use:   "show <entry>",
	Short: "Shows an entry (secret hidden unless --reveal)",
	Long: `Shows an entry. The entry may be referenced by id, id prefix (4+ characters),
name (case-insensitive) or a glob matching a single name.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := resolveEntry(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if showReveal {
			recordEvent(audit.OpEntryReveal, e.ID, nil)
		}
		printEntry(e, showReveal, time.Now())
		return nil
	},
}

func printEntry(e *vault.Entry, reveal bool, now time.Time) {
	secret := strings.Repeat("•", 8)
	if reveal {
		secret = e.Secret
	}
	field := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(stdout, "%s %s\n", styleLabel.Render(fmt.Sprintf("%-9s", label+":")), value)
	}

	fmt.Fprintln(stdout, styleHeader.Render(e.Name))
	field("ID", e.ID)
	field("Category", e.Category)
	field("Login", e.Login)
	field("Secret", secret)
	field("URL", e.URL)
	field("Tags", strings.Join(e.Tags, ", "))
	field("Created", vault.FormatTimestamp(e.CreatedAt)+" ("+humanize.RelTime(e.CreatedAt, now, "ago", "from now")+")")
	field("Updated", vault.FormatTimestamp(e.UpdatedAt)+" ("+humanize.RelTime(e.UpdatedAt, now, "ago", "from now")+")")
	if e.Notes != "" {
		fmt.Fprintln(stdout, styleLabel.Render("Notes:"))
		fmt.Fprintln(stdout, e.Notes)
	}
}

// addCmd adds an entry
var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Adds an entry",
	Long: `Adds an entry. Missing name, category and secret are prompted for.
The secret is never taken from a flag; it is prompted for without echo,
read from standard input when piped, or generated with --generate.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(cmd.Context()); err != nil {
			return err
		}

		in := vault.EntryInput{
			Name:     entryName,
			Login:    entryLogin,
			Category: entryCategory,
			URL:      entryURL,
			Notes:    entryNotes,
			Tags:     parseTags(entryTags),
		}
		var err error
		if strings.TrimSpace(in.Name) == "" {
			if in.Name, err = readLine("Name: "); err != nil {
				return err
			}
		}
		if strings.TrimSpace(in.Category) == "" {
			if in.Category, err = promptCategory(); err != nil {
				return err
			}
		}
		if in.Secret, err = newSecret(entryGenerate, entryLength); err != nil {
			return err
		}

		e, err := v.Add(in)
		if err != nil {
			return fmt.Errorf("failed to add entry: %w", err)
		}
		logging.L.Debug("entry added", "id", e.ID)
		recordEvent(audit.OpEntryAdd, e.ID, nil)
		fmt.Fprintf(stdout, "Entry '%s' added (%s)\n", e.Name, cli.ShortID(e.ID))
		return nil
	},
}

// editCmd edits an entry
var editCmd = &cobra.Command{
	Use:   "edit <entry>",
	Short: "Edits an entry",
	Long: `Edits an entry. Only the fields given as flags change; --tags replaces
all tags and an empty value clears optional fields. Use --secret to be prompted
for a new secret or --generate to replace it with a random one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := resolveEntry(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		in := vault.InputFrom(e)
		flags := cmd.Flags()
		if flags.Changed("name") {
			in.Name = entryName
		}
		if flags.Changed("login") {
			in.Login = entryLogin
		}
		if flags.Changed("category") {
			in.Category = entryCategory
		}
		if flags.Changed("url") {
			in.URL = entryURL
		}
		if flags.Changed("notes") {
			in.Notes = entryNotes
		}
		if flags.Changed("tags") {
			in.Tags = parseTags(entryTags)
		}
		if editSecret || entryGenerate {
			if in.Secret, err = newSecret(entryGenerate, entryLength); err != nil {
				return err
			}
		}

		updated, err := v.Update(e.ID, in)
		if err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}
		recordEvent(audit.OpEntryUpdate, updated.ID, nil)
		fmt.Fprintf(stdout, "Entry '%s' updated\n", updated.Name)
		return nil
	},
}

// removeCmd deletes entries
var removeCmd = &cobra.Command{
	Use:     "rm <entry>...",
	Aliases: []string{"delete"},
	Short:   "Deletes entries",
	Long:    `Deletes entries. Globs may select several entries at once, e.g. coffre rm "old-*".`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(cmd.Context()); err != nil {
			return err
		}
		entries, err := v.Entries()
		if err != nil {
			return err
		}
		targets, err := cli.ResolveAll(args, entries)
		if err != nil {
			return err
		}

		if !removeForce {
			names := make([]string, len(targets))
			for i := range targets {
				names[i] = targets[i].Name
			}
			ok, err := confirm(fmt.Sprintf("Delete %d entr%s (%s)?",
				len(targets), pluralSuffix(len(targets), "y", "ies"), strings.Join(names, ", ")))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(stdout, "Aborted")
				return nil
			}
		}

		for i := range targets {
			if err := v.Delete(targets[i].ID); err != nil {
				return fmt.Errorf("failed to delete '%s': %w", targets[i].Name, err)
			}
			recordEvent(audit.OpEntryDelete, targets[i].ID, nil)
			fmt.Fprintf(stdout, "Entry '%s' deleted\n", targets[i].Name)
		}
		return nil
	},
}

// copyCmd copies a secret to the clipboard
var copyCmd = &cobra.Command{
	Use:   "copy <entry>",
	Short: "Copies an entry's secret to the clipboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := resolveEntry(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := clipboard.WriteAll(e.Secret); err != nil {
			return fmt.Errorf("failed to copy to clipboard: %w", err)
		}
		recordEvent(audit.OpEntryReveal, e.ID, nil)
		fmt.Fprintf(stdout, "Secret of '%s' copied to clipboard\n", e.Name)

		if copyClearAfter > 0 {
			fmt.Fprintf(stdout, "Clearing in %s...\n", copyClearAfter)
			clearClipboardAfter(cmd.Context(), e.Secret, copyClearAfter)
		}
		return nil
	},
}

// clearClipboardAfter empties the clipboard after d unless its content changed
// in the meantime.
func clearClipboardAfter(ctx context.Context, secret string, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
	current, err := clipboard.ReadAll()
	if err != nil || current != secret {
		return
	}
	if err := clipboard.WriteAll(""); err != nil {
		logging.Warnf("failed to clear clipboard: %v", err)
	}
}

// categoriesCmd lists the categories in use and the suggested ones
var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Lists suggested categories and tags in use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(stdout, styleHeader.Render("Categories"))
		for _, c := range vault.Categories {
			fmt.Fprintf(stdout, "  %s\n", c)
		}

		if !v.Exists() {
			return nil
		}
		if err := ensureUnlocked(cmd.Context()); err != nil {
			return err
		}
		entries, err := v.Entries()
		if err != nil {
			return err
		}
		if tags := vault.Tags(entries); len(tags) > 0 {
			fmt.Fprintln(stdout, styleHeader.Render("Tags"))
			fmt.Fprintf(stdout, "  %s\n", strings.Join(tags, ", "))
		}
		return nil
	},
}

// resolveEntry unlocks the vault and resolves a single entry reference.
func resolveEntry(ctx context.Context, ref string) (*vault.Entry, error) {
	if err := ensureUnlocked(ctx); err != nil {
		return nil, err
	}
	entries, err := v.Entries()
	if err != nil {
		return nil, err
	}
	return cli.ResolveOne(ref, entries)
}

// newSecret generates a secret or reads one without echo.
func newSecret(generate bool, length int) (string, error) {
	if generate {
		if length < minPasswordLength || length > maxPasswordLength {
			return "", fmt.Errorf("password length must be between %d and %d", minPasswordLength, maxPasswordLength)
		}
		return generatePassword(charsetLowercase+charsetUppercase+charsetDigits+charsetSymbols, length)
	}
	return readPassword("Secret: ")
}

// promptCategory offers the suggested categories by number; any other text
// is taken as a custom category.
func promptCategory() (string, error) {
	for i, c := range vault.Categories {
		fmt.Fprintf(stdout, "  %d. %s\n", i+1, c)
	}
	answer, err := readLine("Category (number or name): ")
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(vault.Categories) {
		return vault.Categories[n-1], nil
	}
	return answer, nil
}

// parseTags splits a comma-separated tag list. Normalization happens in the
// vault.
func parseTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

func pluralSuffix(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
