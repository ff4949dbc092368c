package mcp

import (
	"fmt"
	"strings"
)

// FormatVaultResults formats search_vault results as markdown.
func FormatVaultResults(query string, out SearchVaultOutput) string {
	if len(out.Results) == 0 {
		return fmt.Sprintf("No notes found for \"%s\"", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Notes matching \"%s\"\n\n", query))
	sb.WriteString(fmt.Sprintf("Found %d note", len(out.Results)))
	if len(out.Results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range out.Results {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, r.Path))
		sb.WriteString(fmt.Sprintf("**Score:** %.2f", r.Score))
		if len(r.MatchedTerms) > 0 {
			sb.WriteString(fmt.Sprintf(" | **Matched:** %s", strings.Join(r.MatchedTerms, ", ")))
		}
		sb.WriteString("\n")
		for _, e := range r.Excerpts {
			sb.WriteString(fmt.Sprintf("- L%d: %s\n", e.Line, e.Text))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatFileResults formats search_in_file results as markdown.
func FormatFileResults(query string, out SearchInFileOutput) string {
	if out.Unsupported {
		return fmt.Sprintf("%s is not a plain-text note", out.Path)
	}
	if len(out.Matches) == 0 {
		return fmt.Sprintf("No lines in %s match \"%s\"", out.Path, query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Lines in %s matching \"%s\"\n\n", out.Path, query))
	for _, m := range out.Matches {
		sb.WriteString(fmt.Sprintf("**Line %d:** %s\n", m.Line, m.Text))
		if m.Context != "" && m.Context != m.Text {
			sb.WriteString("```\n")
			sb.WriteString(m.Context)
			sb.WriteString("\n```\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// clampLimit clamps limit to [min, max], using defaultVal when limit <= 0.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
