// Package importer converts exports of other password managers into vault
// entries. Supports 1Password CSV, Bitwarden JSON, and LastPass CSV formats.
//
// Only fields with a place in an entry are imported. TOTP seeds, card
// security codes and hidden custom fields are dropped with a warning rather
// than written to the unmasked notes.
package importer

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/forest6511/coffre/pkg/vault"
)

// Source represents the source password manager format.
type Source string

const (
	Source1Password Source = "1password"
	SourceBitwarden Source = "bitwarden"
	SourceLastPass  Source = "lastpass"
)

// DefaultCategory is used when the export has no folder for an item.
const DefaultCategory = "Utiles"

// ImportedEntry is one parsed item ready to be added to a vault.
type ImportedEntry struct {
	// Input holds the entry fields, already normalized and validated.
	Input vault.EntryInput

	// OriginalName is the item name in the export, before deduplication.
	OriginalName string
}

// ImportResult contains the results of an import operation.
type ImportResult struct {
	// Entries are the successfully parsed entries.
	Entries []*ImportedEntry

	// Warnings are non-fatal issues encountered during parsing.
	Warnings []string

	// Skipped are items that were skipped with reasons.
	Skipped []SkippedItem
}

// SkippedItem represents an item that was skipped during import.
type SkippedItem struct {
	OriginalName string
	Reason       string
}

// Parser is the interface for export format parsers.
type Parser interface {
	// Parse parses the input data and returns imported entries.
	Parse(data []byte, opts ParseOptions) (*ImportResult, error)

	// Source returns the source type for this parser.
	Source() Source
}

// ParseOptions contains options for parsing.
type ParseOptions struct {
	// Category overrides the folder of every item when set.
	Category string

	// ExistingNames are names already in the vault; imported names that
	// collide get a numeric suffix.
	ExistingNames []string
}

func newResult() *ImportResult {
	return &ImportResult{
		Entries:  make([]*ImportedEntry, 0),
		Warnings: make([]string, 0),
		Skipped:  make([]SkippedItem, 0),
	}
}

// draft collects the fields of one item before it becomes an entry.
type draft struct {
	name     string
	login    string
	secret   string
	category string
	url      string
	notes    []string
	tags     []string
	warnings []string
}

func (d *draft) addNote(label, value string) {
	if value == "" {
		return
	}
	if label == "" {
		d.notes = append(d.notes, value)
		return
	}
	d.notes = append(d.notes, label+": "+value)
}

func (d *draft) drop(what string) {
	d.warnings = append(d.warnings, what+" not imported")
}

// add turns d into an entry, or records why it was skipped. counter numbers
// the fallback names of unnamed items.
func (r *ImportResult) add(d *draft, opts ParseOptions, counter *int, where string) {
	original := d.name
	for _, w := range d.warnings {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %s", where, w))
	}

	if strings.TrimSpace(d.secret) == "" {
		r.Skipped = append(r.Skipped, SkippedItem{OriginalName: original, Reason: "no secret to store"})
		return
	}

	if strings.TrimSpace(d.name) == "" {
		d.name = fallbackName(d.url, *counter)
		*counter++
	}
	if opts.Category != "" {
		d.category = opts.Category
	}
	if strings.TrimSpace(d.category) == "" {
		d.category = DefaultCategory
	}
	if d.url != "" && !isWebURL(d.url) {
		d.addNote("URL", d.url)
		d.url = ""
	}

	in := vault.EntryInput{
		Name:     truncate(d.name, vault.MaxNameLength),
		Login:    d.login,
		Secret:   d.secret,
		Category: truncate(d.category, vault.MaxNameLength),
		URL:      d.url,
		Notes:    strings.Join(d.notes, "\n"),
		Tags:     fitTags(d.tags),
	}.Normalize()

	if len(in.Notes) > vault.MaxNotesSize {
		in.Notes = truncate(in.Notes, vault.MaxNotesSize)
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s: notes truncated to %d bytes", where, vault.MaxNotesSize))
	}
	if len(in.URL) > vault.MaxURLLength {
		in.URL = ""
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s: URL too long, dropped", where))
	}
	if err := in.Validate(); err != nil {
		r.Skipped = append(r.Skipped, SkippedItem{OriginalName: original, Reason: err.Error()})
		return
	}

	r.Entries = append(r.Entries, &ImportedEntry{Input: in, OriginalName: original})
}

// DeduplicateNames makes entry names unique, case-insensitively, among
// themselves and against existing by appending " (2)", " (3)", ...
func DeduplicateNames(entries []*ImportedEntry, existing []string) {
	seen := make(map[string]bool, len(existing)+len(entries))
	for _, name := range existing {
		seen[foldName(name)] = true
	}

	for _, e := range entries {
		base := e.Input.Name
		name := base
		for n := 2; seen[foldName(name)]; n++ {
			suffix := fmt.Sprintf(" (%d)", n)
			name = truncate(base, vault.MaxNameLength-len(suffix)) + suffix
		}
		seen[foldName(name)] = true
		e.Input.Name = name
	}
}

func foldName(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}

// fallbackName names an unnamed item after its website host, or a counter.
func fallbackName(rawURL string, counter int) string {
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil && u.Hostname() != "" {
		return strings.TrimPrefix(u.Hostname(), "www.")
	}
	return fmt.Sprintf("Imported item %d", counter)
}

func isWebURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// fitTags drops tags an entry cannot hold and keeps at most MaxTagCount.
func fitTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if n := utf8.RuneCountInString(t); n < vault.MinTagLength || n > vault.MaxTagLength {
			continue
		}
		out = append(out, t)
		if len(out) == vault.MaxTagCount {
			break
		}
	}
	return out
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// stripBOM removes a UTF-8 byte order mark.
func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

// GetParser returns a parser for the given source.
func GetParser(source Source) (Parser, error) {
	switch source {
	case Source1Password:
		return &OnePasswordParser{}, nil
	case SourceBitwarden:
		return &BitwardenParser{}, nil
	case SourceLastPass:
		return &LastPassParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported import source: %s", source)
	}
}

// ValidSources returns a list of valid source names.
func ValidSources() []string {
	return []string{
		string(Source1Password),
		string(SourceBitwarden),
		string(SourceLastPass),
	}
}
