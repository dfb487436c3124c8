package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/forest6511/coffre/pkg/vault"
)

// ReuseGroup represents a group of entries sharing the same secret.
type ReuseGroup struct {
	// IDs contains the ids of the entries with the shared secret.
	IDs []string `json:"ids"`
	// Names contains the matching entry names, in the same order as IDs.
	Names []string `json:"names"`
	// Count is the number of entries in the group.
	Count int `json:"count"`
}

// FindReused groups entries whose secrets are identical.
// Uses HMAC-SHA256 with a session-local key for privacy-preserving comparison.
// Returns groups sorted by count (most reused first).
//
// Security properties:
// - HMAC with session-local key prevents offline guessing attacks
// - Hashes are computed per-session, never persisted
// - Values are normalized (trimmed whitespace, Unicode NFC)
func (a *Analyzer) FindReused(entries []vault.Entry) []ReuseGroup {
	hashGroups := make(map[string][]int)
	var order []string
	for i := range entries {
		value := normalizeValue(entries[i].Secret)
		if value == "" {
			continue
		}
		hash := computeValueHash(value, a.hmacKey)
		if _, ok := hashGroups[hash]; !ok {
			order = append(order, hash)
		}
		hashGroups[hash] = append(hashGroups[hash], i)
	}

	var groups []ReuseGroup
	for _, hash := range order {
		idx := hashGroups[hash]
		if len(idx) <= 1 {
			continue
		}
		group := ReuseGroup{Count: len(idx)}
		for _, i := range idx {
			group.IDs = append(group.IDs, entries[i].ID)
			group.Names = append(group.Names, entries[i].Name)
		}
		groups = append(groups, group)
	}

	// Sort by count (descending), first occurrence breaks ties
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Count > groups[j].Count
	})

	return groups
}

// FindWeak returns an issue for every entry whose secret is weak.
func (a *Analyzer) FindWeak(entries []vault.Entry) []Issue {
	var issues []Issue
	for i := range entries {
		e := &entries[i]
		if e.Secret == "" {
			continue
		}
		if CalculatePasswordStrength(e.Secret) != PasswordWeak {
			continue
		}
		issues = append(issues, Issue{
			Type:        IssueWeakPassword,
			Severity:    SeverityWarning,
			EntryID:     e.ID,
			EntryName:   e.Name,
			Description: "Password has insufficient strength (" + formatLength(len([]rune(e.Secret))) + ")",
			Suggestion:  "Use a longer password (14+ characters recommended)",
		})
	}
	return issues
}

// computeValueHash computes HMAC-SHA256 of a value with the session key.
func computeValueHash(value string, key []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeValue normalizes a secret for comparison.
func normalizeValue(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}
