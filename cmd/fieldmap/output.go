package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/coolbeans/fieldmap/pkg/config"
	"github.com/coolbeans/fieldmap/pkg/extract"
	"github.com/coolbeans/fieldmap/pkg/profile"
	"github.com/coolbeans/fieldmap/pkg/store"
)

var (
	// titleStyle for section headers
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))

	// keyStyle for field labels
	keyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("81"))

	// dimStyle for muted metadata text
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// successStyle for success indicators
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	// warnStyle for missing fields and duplicates
	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	// errorStyle for error indicators
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	// boxStyle for summary boxes
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("33")).
			Padding(0, 1)
)

// printFields renders extracted fields as aligned "key  value" lines.
func printFields(w io.Writer, profileID string, fields []extract.Field, missing []string) {
	if profileID != "" {
		fmt.Fprintf(w, "%s %s\n\n", dimStyle.Render("Profile:"), titleStyle.Render(profileID))
	}

	if len(fields) == 0 {
		fmt.Fprintln(w, warnStyle.Render("No fields found."))
	}

	width := 0
	for _, f := range fields {
		width = max(width, lipgloss.Width(f.Key))
	}
	for _, f := range fields {
		label := keyStyle.Render(f.Key) + strings.Repeat(" ", width-lipgloss.Width(f.Key))
		value := f.Value
		if value == "" {
			value = dimStyle.Render("(empty)")
		}
		fmt.Fprintf(w, "%s  %s\n", label, value)
	}

	if len(missing) > 0 {
		fmt.Fprintf(w, "\n%s %s\n", warnStyle.Render("Not found:"), strings.Join(missing, ", "))
	}
}

func printSaved(w io.Writer, id int64, duplicate bool) {
	if duplicate {
		fmt.Fprintf(w, "\n%s already stored as submission %d\n", warnStyle.Render("Duplicate:"), id)
		return
	}
	fmt.Fprintf(w, "\n%s submission %d\n", successStyle.Render("Saved"), id)
}

func printMatches(w io.Writer, matches []profile.Match) {
	if len(matches) == 0 {
		fmt.Fprintln(w, warnStyle.Render("No profile matches."))
		return
	}

	fmt.Fprintln(w, titleStyle.Render("Profile matches"))
	for i, m := range matches {
		fmt.Fprintf(w, "%d. %-20s %s %s\n",
			i+1, m.ProfileID,
			confidenceStyle(m.Confidence).Render(fmt.Sprintf("%5.1f%%", m.Confidence*100)),
			dimStyle.Render(fmt.Sprintf("required %d/%d, optional %d/%d", m.RequiredMatched, m.RequiredTotal, m.OptionalMatched, m.OptionalTotal)),
		)
	}
}

func confidenceStyle(c float64) lipgloss.Style {
	switch {
	case c >= 0.75:
		return successStyle
	case c >= 0.4:
		return warnStyle
	default:
		return errorStyle
	}
}

func printProfiles(w io.Writer, profiles []*profile.FormProfile) {
	if len(profiles) == 0 {
		fmt.Fprintln(w, warnStyle.Render("No profiles registered."))
		return
	}

	fmt.Fprintf(w, "%s %s\n\n", titleStyle.Render("Form profiles"), dimStyle.Render(fmt.Sprintf("(%d)", len(profiles))))
	for _, p := range profiles {
		fmt.Fprintf(w, "%s %s %s\n", keyStyle.Render(p.ProfileID), p.Name, dimStyle.Render("v"+p.Version))
		fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("keys:"), strings.Join(quoteAll(p.Keys), ", "))
		fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("source:"), p.Source())
	}
}

func quoteAll(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("%q", k)
	}
	return out
}

func printValid(w io.Writer, path string, p *profile.FormProfile) {
	fmt.Fprintf(w, "%s %s %s\n", successStyle.Render("✓"), path, dimStyle.Render(fmt.Sprintf("(%s, %d keys)", p.ProfileID, len(p.Keys))))
}

func printInvalid(w io.Writer, path string, problems []string) {
	fmt.Fprintf(w, "%s %s\n", errorStyle.Render("✗"), path)
	for _, problem := range problems {
		fmt.Fprintf(w, "    %s\n", problem)
	}
}

func printSubmissions(w io.Writer, subs []*store.Submission) {
	if len(subs) == 0 {
		fmt.Fprintln(w, warnStyle.Render("No submissions stored."))
		return
	}

	for _, s := range subs {
		profileID := s.ProfileID
		if profileID == "" {
			profileID = "-"
		}
		fmt.Fprintf(w, "%s %s %-16s %s %s\n",
			keyStyle.Render(fmt.Sprintf("#%-5d", s.ID)),
			dimStyle.Render(s.CreatedAt.Local().Format("2006-01-02 15:04")),
			profileID,
			summarize(s.Fields),
			dimStyle.Render(s.Source),
		)
	}
}

// summarize shows the first field value of a submission.
func summarize(fields []extract.Field) string {
	for _, f := range fields {
		if f.Value != "" {
			return truncate(f.Key+" "+f.Value, 48)
		}
	}
	return dimStyle.Render("(no fields)")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func printSubmission(w io.Writer, s *store.Submission, showContent bool) {
	header := fmt.Sprintf("%s %d\n%s %s\n%s %s\n%s %s",
		dimStyle.Render("Submission:"), s.ID,
		dimStyle.Render("Profile:"), orDash(s.ProfileID),
		dimStyle.Render("Source:"), orDash(s.Source),
		dimStyle.Render("Stored:"), s.CreatedAt.Local().Format("2006-01-02 15:04:05"),
	)
	fmt.Fprintln(w, boxStyle.Render(header))
	fmt.Fprintln(w)

	printFields(w, "", s.Fields, nil)

	if showContent {
		fmt.Fprintf(w, "\n%s\n%s\n", titleStyle.Render("Content"), s.Content)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printSearchResults(w io.Writer, results []*store.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, warnStyle.Render("No matches."))
		return
	}

	for _, r := range results {
		fmt.Fprintf(w, "%s %s %s\n",
			keyStyle.Render(fmt.Sprintf("#%d", r.Submission.ID)),
			orDash(r.Submission.ProfileID),
			dimStyle.Render(fmt.Sprintf("score %.2f", r.Score)),
		)
		fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(r.Snippet, "\n", " "))
	}
}

func printStats(w io.Writer, stats *store.StoreStats) {
	lines := []string{
		fmt.Sprintf("%s %d", dimStyle.Render("Submissions:"), stats.SubmissionCount),
		fmt.Sprintf("%s %d", dimStyle.Render("Fields:"), stats.FieldCount),
		fmt.Sprintf("%s %s", dimStyle.Render("Database:"), formatBytes(stats.DBSizeBytes)),
	}

	profiles := make([]string, 0, len(stats.ByProfile))
	for id := range stats.ByProfile {
		profiles = append(profiles, id)
	}
	sort.Strings(profiles)
	for _, id := range profiles {
		lines = append(lines, fmt.Sprintf("  %-20s %d", orDash(id), stats.ByProfile[id]))
	}

	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func printConfig(w io.Writer, cfg config.ResolvedConfig) {
	fmt.Fprintf(w, "%s %s\n\n", dimStyle.Render("Config file:"), cfg.ConfigPath)
	for _, row := range configRows(cfg) {
		from := string(row.value.Source)
		if row.value.From != "" {
			from += ": " + row.value.From
		}
		fmt.Fprintf(w, "%s %s %s\n",
			keyStyle.Render(fmt.Sprintf("%-20s", row.name)),
			row.value.Value,
			dimStyle.Render("("+from+")"),
		)
	}
}
