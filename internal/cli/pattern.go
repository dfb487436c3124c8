// Package cli provides shared utilities for CLI commands.
package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/forest6511/coffre/pkg/vault"
)

// MinIDPrefixLength is the shortest id prefix accepted as a reference.
const MinIDPrefixLength = 4

// Reference errors
var (
	ErrNoMatch   = errors.New("no entry matches")
	ErrAmbiguous = errors.New("reference matches several entries")
)

// Resolve finds the entries a user reference designates. In order of
// precedence a reference is an exact id, a case-insensitive exact name, a
// unique id prefix of at least MinIDPrefixLength characters, or, when it
// contains glob characters (*?[), a case-insensitive glob over names.
//
// Only globs may return more than one entry; an ambiguous name or prefix is
// ErrAmbiguous.
func Resolve(ref string, entries []vault.Entry) ([]vault.Entry, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrNoMatch)
	}

	if strings.ContainsAny(ref, "*?[") {
		return matchGlob(ref, entries)
	}

	for i := range entries {
		if entries[i].ID == ref {
			return []vault.Entry{entries[i]}, nil
		}
	}

	var byName []vault.Entry
	for i := range entries {
		if strings.EqualFold(entries[i].Name, ref) {
			byName = append(byName, entries[i])
		}
	}
	if len(byName) == 1 {
		return byName, nil
	}
	if len(byName) > 1 {
		return nil, ambiguous(ref, byName)
	}

	if len(ref) >= MinIDPrefixLength {
		var byPrefix []vault.Entry
		for i := range entries {
			if strings.HasPrefix(entries[i].ID, ref) {
				byPrefix = append(byPrefix, entries[i])
			}
		}
		if len(byPrefix) == 1 {
			return byPrefix, nil
		}
		if len(byPrefix) > 1 {
			return nil, ambiguous(ref, byPrefix)
		}
	}

	return nil, fmt.Errorf("%w '%s'", ErrNoMatch, ref)
}

// ResolveOne is Resolve for commands acting on a single entry.
func ResolveOne(ref string, entries []vault.Entry) (*vault.Entry, error) {
	matches, err := Resolve(ref, entries)
	if err != nil {
		return nil, err
	}
	if len(matches) > 1 {
		return nil, ambiguous(ref, matches)
	}
	return &matches[0], nil
}

// ResolveAll resolves several references. Returns unique entries preserving
// order of first match.
func ResolveAll(refs []string, entries []vault.Entry) ([]vault.Entry, error) {
	seen := make(map[string]bool)
	var result []vault.Entry

	for _, ref := range refs {
		matches, err := Resolve(ref, entries)
		if err != nil {
			return nil, err
		}
		for _, e := range matches {
			if !seen[e.ID] {
				seen[e.ID] = true
				result = append(result, e)
			}
		}
	}

	return result, nil
}

// ShortID returns the prefix of id shown in listings.
func ShortID(id string) string {
	const n = 8
	if len(id) <= n {
		return id
	}
	return id[:n]
}

func matchGlob(pattern string, entries []vault.Entry) ([]vault.Entry, error) {
	pattern = strings.ToLower(pattern)
	// Validate pattern syntax
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
	}

	var matches []vault.Entry
	for i := range entries {
		matched, err := filepath.Match(pattern, strings.ToLower(entries[i].Name))
		if err != nil {
			return nil, err
		}
		if matched {
			matches = append(matches, entries[i])
		}
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("%w pattern '%s'", ErrNoMatch, pattern)
	}
	return matches, nil
}

func ambiguous(ref string, matches []vault.Entry) error {
	names := make([]string, len(matches))
	for i := range matches {
		names[i] = fmt.Sprintf("%s (%s)", matches[i].Name, ShortID(matches[i].ID))
	}
	return fmt.Errorf("%w '%s': %s", ErrAmbiguous, ref, strings.Join(names, ", "))
}
