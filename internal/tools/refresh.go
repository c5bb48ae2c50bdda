package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/hbadvisor/internal/scheduler"
)

// RefreshTool handles the hb_refresh_knowledge MCP tool.
type RefreshTool struct {
	refresher Refresher
}

// NewRefreshTool creates a RefreshTool.
func NewRefreshTool(r Refresher) *RefreshTool {
	return &RefreshTool{refresher: r}
}

// Definition returns the MCP tool definition for registration.
func (t *RefreshTool) Definition() mcp.Tool {
	return mcp.NewTool("hb_refresh_knowledge",
		mcp.WithDescription(
			"Check upstream for a new Hummingbird release now instead of waiting for the "+
				"hourly update. New deprecations become draft rules for review. Rate limited.",
		),
	)
}

// Handle processes the hb_refresh_knowledge tool call.
func (t *RefreshTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := t.refresher.Trigger(ctx)
	if errors.Is(err, scheduler.ErrRateLimited) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("refreshing knowledge: %w", err)
	}
	return mcp.NewToolResultText(RenderReport(rep)), nil
}

// RenderReport formats a cycle report as Markdown.
func RenderReport(rep scheduler.Report) string {
	var sb strings.Builder
	sb.WriteString("# Knowledge Refresh\n\n")
	fmt.Fprintf(&sb, "- **Run**: %s (%s)\n", rep.RunID, rep.Duration().Round(time.Millisecond))
	if rep.ReleaseTag != "" {
		fmt.Fprintf(&sb, "- **Latest release**: %s", rep.ReleaseTag)
		if rep.NewRelease {
			sb.WriteString(" (new)")
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("- **Latest release**: unavailable, existing knowledge kept\n")
	}
	fmt.Fprintf(&sb, "- **Deprecations found**: %d\n", rep.FactsParsed)
	fmt.Fprintf(&sb, "- **Rules**: %d new, %d already known\n", rep.RulesAdded, rep.RulesRefreshed)
	fmt.Fprintf(&sb, "- **Package index**: %s\n", okText(rep.PackageIndexOK))

	if len(rep.Errors) > 0 {
		sb.WriteString("\n## Problems (non-fatal)\n\n")
		for _, e := range rep.Errors {
			fmt.Fprintf(&sb, "- %s\n", e)
		}
	}
	if rep.RulesAdded > 0 {
		sb.WriteString("\nNew rules are drafts. Review them with hb_list_rules and hb_review_rule.\n")
	}
	return sb.String()
}

func okText(ok bool) string {
	if ok {
		return "reachable"
	}
	return "unreachable"
}
