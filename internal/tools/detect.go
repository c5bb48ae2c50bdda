package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/hbadvisor/internal/detector"
	"github.com/HendryAvila/hbadvisor/internal/rules"
)

// DetectTool handles the hb_detect_violations MCP tool.
// It scans code against the static catalogue and approved dynamic rules.
type DetectTool struct {
	kb Reader
}

// NewDetectTool creates a DetectTool.
func NewDetectTool(kb Reader) *DetectTool {
	return &DetectTool{kb: kb}
}

// Definition returns the MCP tool definition for registration.
func (t *DetectTool) Definition() mcp.Tool {
	return mcp.NewTool("hb_detect_violations",
		mcp.WithDescription(
			"Scan Swift code for Hummingbird architecture violations: 1.x APIs, blocking "+
				"calls in async handlers, crashes in request paths, hard-coded secrets and "+
				"APIs deprecated by recent releases. Run this on every piece of Hummingbird "+
				"code you write or review. A report that starts with BLOCKED contains "+
				"critical violations that must be fixed before the code is used.",
		),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("The source code to scan."),
		),
		mcp.WithString("file_path",
			mcp.Description("Optional file path. Used for reporting and to skip rules that "+
				"only apply to other file types (e.g. .swift-only rules on Package.resolved)."),
		),
	)
}

// Handle processes the hb_detect_violations tool call.
func (t *DetectTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code := req.GetString("code", "")
	filePath := strings.TrimSpace(req.GetString("file_path", ""))

	matches := t.kb.DetectViolations(code, filePath)
	return mcp.NewToolResultText(RenderViolations(matches, filePath)), nil
}

// RenderViolations formats matches as a Markdown report. When any match is
// critical the first line is a BLOCKED banner so callers can gate on it.
func RenderViolations(matches []detector.Match, filePath string) string {
	var sb strings.Builder

	if n := countSeverity(matches, rules.SeverityCritical); n > 0 {
		fmt.Fprintf(&sb, "BLOCKED: %d critical violation(s). Fix these before using the code.\n\n", n)
	}

	sb.WriteString("# Hummingbird Violation Report\n\n")
	target := "the submitted code"
	if filePath != "" {
		target = "`" + filePath + "`"
	}

	if len(matches) == 0 {
		fmt.Fprintf(&sb, "No violations found in %s.\n", target)
		return sb.String()
	}

	fmt.Fprintf(&sb, "Found %d violation(s) in %s: %d critical, %d error, %d warning.\n\n",
		len(matches), target,
		countSeverity(matches, rules.SeverityCritical),
		countSeverity(matches, rules.SeverityError),
		countSeverity(matches, rules.SeverityWarning),
	)

	for i, m := range matches {
		fmt.Fprintf(&sb, "## %d. [%s] %s (line %d)\n\n", i+1, strings.ToUpper(string(m.Severity)), m.RuleID, m.Line)
		if m.Snippet != "" {
			fmt.Fprintf(&sb, "```swift\n%s\n```\n\n", m.Snippet)
		}
		fmt.Fprintf(&sb, "- **Problem**: %s\n", m.Description)
		fmt.Fprintf(&sb, "- **Fix**: %s\n", m.FixSuggestion)
		if m.CorrectionID != "" {
			fmt.Fprintf(&sb, "- **Guidance**: hb_get_entry(id: %q)\n", m.CorrectionID)
		}
		if m.Origin == rules.OriginAutoGenerated {
			sb.WriteString("- **Origin**: generated from upstream release notes\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func countSeverity(matches []detector.Match, s rules.Severity) int {
	n := 0
	for _, m := range matches {
		if m.Severity == s {
			n++
		}
	}
	return n
}
