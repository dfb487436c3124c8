package importer

import (
	"strings"
	"testing"

	"github.com/forest6511/coffre/pkg/vault"
)

func TestDeduplicateNames(t *testing.T) {
	tests := []struct {
		name     string
		names    []string
		existing []string
		want     []string
	}{
		{"no duplicates", []string{"a", "b"}, nil, []string{"a", "b"}},
		{"duplicates within import", []string{"a", "a", "a"}, nil, []string{"a", "a (2)", "a (3)"}},
		{"case-insensitive", []string{"Mail", "MAIL"}, nil, []string{"Mail", "MAIL (2)"}},
		{"against existing", []string{"Bank"}, []string{"bank", "Bank (2)"}, []string{"Bank (3)"}},
		{"suffix collides with import", []string{"x (2)", "x", "x"}, nil, []string{"x (2)", "x", "x (3)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := make([]*ImportedEntry, len(tt.names))
			for i, n := range tt.names {
				entries[i] = &ImportedEntry{Input: vault.EntryInput{Name: n}}
			}
			DeduplicateNames(entries, tt.existing)
			for i, e := range entries {
				if e.Input.Name != tt.want[i] {
					t.Errorf("entry %d: got %q, want %q", i, e.Input.Name, tt.want[i])
				}
			}
		})
	}
}

func TestDeduplicateNamesKeepsLengthLimit(t *testing.T) {
	long := strings.Repeat("n", vault.MaxNameLength)
	entries := []*ImportedEntry{
		{Input: vault.EntryInput{Name: long}},
		{Input: vault.EntryInput{Name: long}},
	}
	DeduplicateNames(entries, nil)
	if got := len(entries[1].Input.Name); got > vault.MaxNameLength {
		t.Errorf("deduplicated name is %d bytes, limit %d", got, vault.MaxNameLength)
	}
	if !strings.HasSuffix(entries[1].Input.Name, " (2)") {
		t.Errorf("expected suffix, got %q", entries[1].Input.Name)
	}
}

func TestFallbackName(t *testing.T) {
	tests := []struct {
		url     string
		counter int
		want    string
	}{
		{"https://www.github.com/login", 1, "github.com"},
		{"https://bank.example.fr", 1, "bank.example.fr"},
		{"", 3, "Imported item 3"},
		{"not a url", 4, "Imported item 4"},
	}
	for _, tt := range tests {
		if got := fallbackName(tt.url, tt.counter); got != tt.want {
			t.Errorf("fallbackName(%q, %d) = %q, want %q", tt.url, tt.counter, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo", 2); got != "h" {
		t.Errorf("truncate should stop on a rune boundary, got %q", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Errorf("got %q", got)
	}
}

func TestOversizeNotesTruncated(t *testing.T) {
	d := &draft{name: "Big", secret: "p", notes: []string{strings.Repeat("x", vault.MaxNotesSize+100)}}
	result := newResult()
	counter := 1
	result.add(d, ParseOptions{}, &counter, "row 2")

	if len(result.Entries) != 1 {
		t.Fatalf("got %d entries, want 1 (skipped: %v)", len(result.Entries), result.Skipped)
	}
	if got := len(result.Entries[0].Input.Notes); got != vault.MaxNotesSize {
		t.Errorf("notes length = %d, want %d", got, vault.MaxNotesSize)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("expected a truncation warning, got %v", result.Warnings)
	}
}

func TestGetParser(t *testing.T) {
	for _, s := range ValidSources() {
		p, err := GetParser(Source(s))
		if err != nil {
			t.Errorf("GetParser(%q): %v", s, err)
			continue
		}
		if string(p.Source()) != s {
			t.Errorf("GetParser(%q).Source() = %q", s, p.Source())
		}
	}
	if _, err := GetParser("keepass"); err == nil {
		t.Error("expected error for unsupported source")
	}
}
