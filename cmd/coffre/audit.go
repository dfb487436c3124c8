package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/coffre/pkg/security"
	"github.com/forest6511/coffre/pkg/vault"
)

// Audit command flags
var (
	auditVerbose   bool
	auditJSON      bool
	auditStaleDays int
)

// auditCmd is the root audit command.
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Analyze vault security health",
	Long: `Analyze the security health of your vault and get recommendations.

The security score is calculated from:
  - Password Strength (0-25): Average strength of the stored secrets
  - Uniqueness (0-25): Percentage of secrets used by a single entry
  - Freshness (0-25): Percentage of secrets changed within --stale-days

Example:
  coffre audit              # Show security score and issues
  coffre audit --verbose    # Also show suggestions
  coffre audit --json       # Output in JSON format`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		analyzer, entries, err := openAnalyzer(cmd)
		if err != nil {
			return err
		}

		report := analyzer.Analyze(entries)
		if auditJSON {
			return outputAuditJSON(report)
		}
		outputAuditText(report, auditVerbose)
		return nil
	},
}

// auditReusedCmd lists secrets used by more than one entry.
var auditReusedCmd = &cobra.Command{
	Use:   "reused",
	Short: "List secrets shared by several entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		analyzer, entries, err := openAnalyzer(cmd)
		if err != nil {
			return err
		}

		groups := analyzer.FindReused(entries)
		if len(groups) == 0 {
			fmt.Fprintln(stdout, styleOK.Render("No reused secrets found!"))
			return nil
		}

		fmt.Fprintf(stdout, "Reused Secrets (%d groups found)\n\n", len(groups))
		for i, group := range groups {
			fmt.Fprintf(stdout, "%d. %d entries share the same secret:\n", i+1, group.Count)
			for _, name := range group.Names {
				fmt.Fprintf(stdout, "   - %s\n", name)
			}
			fmt.Fprintln(stdout)
		}
		return nil
	},
}

// auditWeakCmd lists weak secrets.
var auditWeakCmd = &cobra.Command{
	Use:   "weak",
	Short: "List weak secrets",
	Long: `Show entries whose secret is weak.

A secret is weak when it is shorter than 8 characters.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		analyzer, entries, err := openAnalyzer(cmd)
		if err != nil {
			return err
		}

		issues := analyzer.FindWeak(entries)
		if len(issues) == 0 {
			fmt.Fprintln(stdout, styleOK.Render("No weak secrets found!"))
			return nil
		}

		fmt.Fprintf(stdout, "Weak Secrets (%d found)\n\n", len(issues))
		for i, issue := range issues {
			fmt.Fprintf(stdout, "%d. %s\n", i+1, issue.EntryName)
			fmt.Fprintf(stdout, "   %s\n\n", issue.Description)
		}
		return nil
	},
}

// openAnalyzer unlocks the vault and returns its entries with an analyzer.
func openAnalyzer(cmd *cobra.Command) (*security.Analyzer, []vault.Entry, error) {
	if auditStaleDays <= 0 {
		return nil, nil, fmt.Errorf("--stale-days must be positive, got %d", auditStaleDays)
	}
	if err := ensureUnlocked(cmd.Context()); err != nil {
		return nil, nil, err
	}
	entries, err := v.Entries()
	if err != nil {
		return nil, nil, err
	}
	analyzer, err := security.NewAnalyzer(
		security.WithStaleAfter(time.Duration(auditStaleDays) * 24 * time.Hour),
	)
	if err != nil {
		return nil, nil, err
	}
	return analyzer, entries, nil
}

// outputAuditJSON outputs the security report as JSON.
func outputAuditJSON(report *security.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, string(data))
	return nil
}

// outputAuditText outputs the security report as formatted text.
func outputAuditText(report *security.Report, verbose bool) {
	var rating string
	style := styleOK
	switch {
	case report.Overall >= 90:
		rating = "Excellent"
	case report.Overall >= 70:
		rating = "Good"
	case report.Overall >= 50:
		style = styleWarning
		rating = "Fair"
	default:
		style = styleDanger
		rating = "Needs Attention"
	}

	fmt.Fprintln(stdout, styleHeader.Render("Security Score: ")+
		style.Render(fmt.Sprintf("%d/100 (%s)", report.Overall, rating)))
	fmt.Fprintln(stdout)

	c := report.Components
	fmt.Fprintln(stdout, "Components:")
	fmt.Fprintf(stdout, "  Password Strength: %2d/25 %s\n", c.StrengthScore, progressBar(c.StrengthScore, 25))
	fmt.Fprintf(stdout, "  Uniqueness:        %2d/25 %s\n", c.UniquenessScore, progressBar(c.UniquenessScore, 25))
	fmt.Fprintf(stdout, "  Freshness:         %2d/25 %s\n", c.FreshnessScore, progressBar(c.FreshnessScore, 25))
	fmt.Fprintln(stdout)

	if len(report.Issues) > 0 {
		fmt.Fprintf(stdout, "Issues (%d):\n", len(report.Issues))
		for i, issue := range report.Issues {
			typeLabel := strings.ToUpper(string(issue.Type))
			if issue.Severity == security.SeverityCritical {
				typeLabel = styleDanger.Render(typeLabel)
			}
			target := ""
			if issue.EntryName != "" {
				target = fmt.Sprintf(" %q", issue.EntryName)
			}
			fmt.Fprintf(stdout, "  %d. [%s]%s: %s\n", i+1, typeLabel, target, issue.Description)
		}
		fmt.Fprintln(stdout)
	}

	if verbose && len(report.Suggestions) > 0 {
		fmt.Fprintln(stdout, "Suggestions:")
		for _, suggestion := range report.Suggestions {
			fmt.Fprintf(stdout, "  - %s\n", suggestion)
		}
		fmt.Fprintln(stdout)
	}
}

// progressBar creates a simple text progress bar.
func progressBar(value, maxVal int) string {
	const width = 20
	if maxVal <= 0 {
		return ""
	}
	filled := value * width / maxVal
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditReusedCmd)
	auditCmd.AddCommand(auditWeakCmd)

	auditCmd.Flags().BoolVarP(&auditVerbose, "verbose", "v", false, "Show suggestions as well")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Output in JSON format")
	auditCmd.PersistentFlags().IntVar(&auditStaleDays, "stale-days", int(security.DefaultStaleAfter/(24*time.Hour)),
		"Report secrets unchanged for this many days")
}
