// Package tools implements the hbadvisor MCP tool handlers.
//
// Each tool is a struct holding its dependencies, with a Definition that
// describes it to the client and a Handle compatible with mcp-go's
// CallToolRequest signature. Tools depend on the small interfaces below,
// not on the concrete store or scheduler.
//
// User mistakes (missing arguments, unknown ids, invalid transitions) are
// returned as tool errors; a Go error is reserved for failures of the
// server itself.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/hbadvisor/internal/detector"
	"github.com/HendryAvila/hbadvisor/internal/knowledge"
	"github.com/HendryAvila/hbadvisor/internal/rules"
	"github.com/HendryAvila/hbadvisor/internal/scheduler"
)

// Reader is the query side of the knowledge store.
type Reader interface {
	DetectViolations(code, filePathHint string) []detector.Match
	Entry(id string) (knowledge.KnowledgeEntry, bool)
	Entries(layer string) []knowledge.KnowledgeEntry
	Pitfalls() []knowledge.KnowledgeEntry
	DynamicRules(status rules.ReviewStatus) []rules.ViolationRule
}

// Reviewer promotes or rejects dynamic rules.
type Reviewer interface {
	SetReviewStatus(id string, status rules.ReviewStatus) (rules.ViolationRule, error)
}

// Refresher runs a manual update cycle.
type Refresher interface {
	Trigger(ctx context.Context) (scheduler.Report, error)
}

// maxListBody bounds entry bodies in list output; hb_get_entry returns
// the full text.
const maxListBody = 200

// writeEntry renders one entry as a Markdown section.
func writeEntry(sb *strings.Builder, e knowledge.KnowledgeEntry, full bool) {
	fmt.Fprintf(sb, "## %s\n\n", e.Title)
	fmt.Fprintf(sb, "- **ID**: `%s`\n", e.ID)
	fmt.Fprintf(sb, "- **Kind**: %s\n", e.Kind)
	if e.Layer != "" {
		fmt.Fprintf(sb, "- **Layer**: %s\n", e.Layer)
	}
	if v := versionRange(e); v != "" {
		fmt.Fprintf(sb, "- **Versions**: %s\n", v)
	}
	fmt.Fprintf(sb, "- **Confidence**: %.2f\n", e.Confidence)
	fmt.Fprintf(sb, "- **Source**: %s\n", e.Source)
	if len(e.Tags) > 0 {
		fmt.Fprintf(sb, "- **Tags**: %s\n", strings.Join(e.Tags, ", "))
	}
	if e.LastVerifiedAt != nil {
		fmt.Fprintf(sb, "- **Last verified**: %s\n", e.LastVerifiedAt.Format("2006-01-02 15:04 MST"))
	}

	body := strings.TrimSpace(e.Body)
	if !full {
		body = knowledge.Truncate(body, maxListBody)
	}
	fmt.Fprintf(sb, "\n%s\n\n", body)
}

func versionRange(e knowledge.KnowledgeEntry) string {
	switch {
	case e.MinVersion != "" && e.MaxVersion != "":
		return e.MinVersion + " to " + e.MaxVersion
	case e.MinVersion != "":
		return e.MinVersion + "+"
	case e.MaxVersion != "":
		return "up to " + e.MaxVersion
	}
	return ""
}

// writeRule renders one rule as a Markdown list item.
func writeRule(sb *strings.Builder, r rules.ViolationRule) {
	fmt.Fprintf(sb, "- `%s` [%s, %s]\n", r.ID, strings.ToUpper(string(r.Severity)), r.ReviewStatus)
	fmt.Fprintf(sb, "  - Pattern (%s): `%s`\n", r.PatternKind, r.Pattern)
	fmt.Fprintf(sb, "  - %s\n", r.Description)
	fmt.Fprintf(sb, "  - Fix: %s\n", r.FixSuggestion)
	if r.SourceVersion != "" {
		fmt.Fprintf(sb, "  - From release %s, generated %s\n", r.SourceVersion, r.GeneratedAt.Format("2006-01-02"))
	}
}
