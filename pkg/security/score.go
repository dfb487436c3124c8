package security

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"time"

	"github.com/forest6511/coffre/pkg/vault"
)

// DefaultStaleAfter is how long a secret may go without an update before it
// is reported as stale.
const DefaultStaleAfter = 365 * 24 * time.Hour

// Report represents the overall security assessment of a vault.
type Report struct {
	// Overall is the total score (0-100).
	Overall int `json:"overall"`
	// Components breaks down the score into categories.
	Components ScoreComponents `json:"components"`
	// Issues contains the detected security issues.
	Issues []Issue `json:"issues"`
	// Reused contains the groups of entries sharing a secret.
	Reused []ReuseGroup `json:"reused"`
	// Suggestions provides actionable recommendations.
	Suggestions []string `json:"suggestions"`
}

// ScoreComponents breaks down the security score into categories.
// Each component contributes up to 25 points; Overall rescales their sum.
type ScoreComponents struct {
	// StrengthScore is based on average password strength (0-25).
	StrengthScore int `json:"strength"`
	// UniquenessScore is based on percentage of unique passwords (0-25).
	UniquenessScore int `json:"uniqueness"`
	// FreshnessScore is based on percentage of recently updated entries (0-25).
	FreshnessScore int `json:"freshness"`
}

// IssueType identifies the type of security issue.
type IssueType string

const (
	// IssueWeakPassword indicates a password with insufficient strength.
	IssueWeakPassword IssueType = "weak"
	// IssueReusedPassword indicates a password shared by several entries.
	IssueReusedPassword IssueType = "reused"
	// IssueStale indicates a secret that has not been changed for a long time.
	IssueStale IssueType = "stale"
)

// Severity indicates the urgency of a security issue.
type Severity string

const (
	// SeverityCritical requires immediate attention.
	SeverityCritical Severity = "critical"
	// SeverityWarning should be addressed soon.
	SeverityWarning Severity = "warning"
	// SeverityInfo is informational only.
	SeverityInfo Severity = "info"
)

// Issue represents a detected security problem.
type Issue struct {
	Type        IssueType `json:"type"`
	Severity    Severity  `json:"severity"`
	EntryID     string    `json:"entry_id,omitempty"`
	EntryName   string    `json:"entry_name,omitempty"`
	EntryIDs    []string  `json:"entry_ids,omitempty"` // reused issues span several entries
	Description string    `json:"description"`
	Suggestion  string    `json:"suggestion,omitempty"`
}

// Analyzer computes security reports for a set of entries.
type Analyzer struct {
	hmacKey    []byte // Session-local key for reuse detection
	staleAfter time.Duration
	now        func() time.Time
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithStaleAfter sets the age after which an unchanged secret is stale.
func WithStaleAfter(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) { a.staleAfter = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) { a.now = now }
}

// NewAnalyzer creates an analyzer with a fresh random HMAC key.
func NewAnalyzer(opts ...AnalyzerOption) (*Analyzer, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("security: failed to generate session key: %w", err)
	}
	a := &Analyzer{
		hmacKey:    key,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Analyze computes the full security report for entries.
func (a *Analyzer) Analyze(entries []vault.Entry) *Report {
	// Empty vault: perfect score
	if len(entries) == 0 {
		return &Report{
			Overall: 100,
			Components: ScoreComponents{
				StrengthScore:   25,
				UniquenessScore: 25,
				FreshnessScore:  25,
			},
			Issues:      []Issue{},
			Reused:      []ReuseGroup{},
			Suggestions: []string{},
		}
	}

	strengthScore, weakIssues := a.calculateStrengthScore(entries)
	uniquenessScore, reused, reuseIssues := a.calculateUniquenessScore(entries)
	freshnessScore, staleIssues := a.calculateFreshnessScore(entries)

	issues := make([]Issue, 0, len(weakIssues)+len(reuseIssues)+len(staleIssues))
	issues = append(issues, weakIssues...)
	issues = append(issues, reuseIssues...)
	issues = append(issues, staleIssues...)

	if reused == nil {
		reused = []ReuseGroup{}
	}

	return &Report{
		Overall: (strengthScore + uniquenessScore + freshnessScore) * 100 / 75,
		Components: ScoreComponents{
			StrengthScore:   strengthScore,
			UniquenessScore: uniquenessScore,
			FreshnessScore:  freshnessScore,
		},
		Issues:      issues,
		Reused:      reused,
		Suggestions: generateSuggestions(issues),
	}
}

// calculateStrengthScore evaluates password strength across all entries.
// Returns score (0-25) and weak password issues.
func (a *Analyzer) calculateStrengthScore(entries []vault.Entry) (int, []Issue) {
	totalPoints := 0
	passwordCount := 0
	for i := range entries {
		if entries[i].Secret == "" {
			continue
		}
		passwordCount++
		totalPoints += CalculatePasswordStrength(entries[i].Secret).Points()
	}

	// No secrets: full score (N/A)
	if passwordCount == 0 {
		return 25, nil
	}

	score := totalPoints / passwordCount
	if score > 25 {
		score = 25
	}
	return score, a.FindWeak(entries)
}

// calculateUniquenessScore evaluates password reuse across entries.
// Returns score (0-25), the reuse groups and one issue per group.
func (a *Analyzer) calculateUniquenessScore(entries []vault.Entry) (int, []ReuseGroup, []Issue) {
	passwordHashes := make(map[string]bool)
	totalPasswords := 0
	for i := range entries {
		value := normalizeValue(entries[i].Secret)
		if value == "" {
			continue
		}
		totalPasswords++
		passwordHashes[computeValueHash(value, a.hmacKey)] = true
	}

	// No passwords: full score (N/A)
	if totalPasswords == 0 {
		return 25, nil, nil
	}

	groups := a.FindReused(entries)
	var issues []Issue
	for _, group := range groups {
		issues = append(issues, Issue{
			Type:        IssueReusedPassword,
			Severity:    SeverityWarning,
			EntryIDs:    group.IDs,
			Description: strconv.Itoa(group.Count) + " entries share the same password",
			Suggestion:  "Use unique passwords for each entry",
		})
	}

	uniquenessRatio := float64(len(passwordHashes)) / float64(totalPasswords)
	return int(uniquenessRatio * 25), groups, issues
}

// calculateFreshnessScore evaluates how recently secrets were changed.
// Returns score (0-25) and stale entry issues.
func (a *Analyzer) calculateFreshnessScore(entries []vault.Entry) (int, []Issue) {
	var issues []Issue
	now := a.now()
	fresh := 0

	for i := range entries {
		e := &entries[i]
		age := now.Sub(e.UpdatedAt)
		if e.UpdatedAt.IsZero() || age < a.staleAfter {
			fresh++
			continue
		}
		issues = append(issues, Issue{
			Type:        IssueStale,
			Severity:    SeverityInfo,
			EntryID:     e.ID,
			EntryName:   e.Name,
			Description: "Secret unchanged for " + formatDays(int(age.Hours()/24)),
			Suggestion:  "Rotate long-lived credentials",
		})
	}

	return fresh * 25 / len(entries), issues
}

// generateSuggestions creates actionable recommendations based on issues.
func generateSuggestions(issues []Issue) []string {
	suggestions := []string{}
	hasWeak := false
	hasReused := false
	hasStale := false

	for _, issue := range issues {
		switch issue.Type {
		case IssueWeakPassword:
			hasWeak = true
		case IssueReusedPassword:
			hasReused = true
		case IssueStale:
			hasStale = true
		}
	}

	if hasWeak {
		suggestions = append(suggestions, "Update weak passwords with stronger alternatives (14+ characters)")
	}
	if hasReused {
		suggestions = append(suggestions, "Replace reused passwords with unique values")
	}
	if hasStale {
		suggestions = append(suggestions, "Rotate passwords that have not changed in over a year")
	}

	return suggestions
}

// formatLength returns a human-readable length description.
func formatLength(n int) string {
	if n == 1 {
		return "1 character"
	}
	return strconv.Itoa(n) + " characters"
}

// formatDays returns a human-readable day count.
func formatDays(days int) string {
	if days == 1 {
		return "1 day"
	}
	return strconv.Itoa(days) + " days"
}
