package vault

import (
	"fmt"
	"sort"
	"strings"
)

// SortBy selects the ordering used by Sort.
type SortBy string

// Supported orderings.
const (
	SortNone      SortBy = ""
	SortName      SortBy = "name"
	SortCategory  SortBy = "category"
	SortCreatedAt SortBy = "createdAt"
	SortUpdatedAt SortBy = "updatedAt"
)

// ParseSortBy validates a user-supplied ordering.
func ParseSortBy(s string) (SortBy, error) {
	switch SortBy(s) {
	case SortNone, SortName, SortCategory, SortCreatedAt, SortUpdatedAt:
		return SortBy(s), nil
	}
	return SortNone, fmt.Errorf("unknown sort order %q (use name, category, createdAt or updatedAt)", s)
}

// Query filters entries. Empty fields match everything.
type Query struct {
	// Text is matched case-insensitively against name, login, notes and url.
	Text     string
	Category string
	Tag      string
}

// Match reports whether e satisfies q.
func (q Query) Match(e *Entry) bool {
	if q.Category != "" && e.Category != q.Category {
		return false
	}
	if q.Tag != "" && !e.HasTag(q.Tag) {
		return false
	}
	if q.Text == "" {
		return true
	}
	text := strings.ToLower(q.Text)
	for _, field := range []string{e.Name, e.Login, e.Notes, e.URL} {
		if strings.Contains(strings.ToLower(field), text) {
			return true
		}
	}
	return false
}

// Filter returns copies of the entries matching q, in their original order.
func Filter(entries []Entry, q Query) []Entry {
	out := make([]Entry, 0, len(entries))
	for i := range entries {
		if q.Match(&entries[i]) {
			out = append(out, entries[i])
		}
	}
	return out
}

// Sort orders entries in place. The sort is stable, so SortNone and ties keep
// insertion order.
func Sort(entries []Entry, by SortBy) {
	var less func(a, b *Entry) bool
	switch by {
	case SortName:
		less = func(a, b *Entry) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case SortCategory:
		less = func(a, b *Entry) bool { return strings.ToLower(a.Category) < strings.ToLower(b.Category) }
	case SortCreatedAt:
		less = func(a, b *Entry) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortUpdatedAt:
		less = func(a, b *Entry) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	default:
		return
	}
	sort.SliceStable(entries, func(i, j int) bool { return less(&entries[i], &entries[j]) })
}

// Tags returns every tag used by entries, sorted.
func Tags(entries []Entry) []string {
	seen := make(map[string]bool)
	var tags []string
	for i := range entries {
		for _, t := range entries[i].Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	sort.Strings(tags)
	return tags
}
