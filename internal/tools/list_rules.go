package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/hbadvisor/internal/rules"
)

// ListRulesTool handles the hb_list_rules MCP tool.
type ListRulesTool struct {
	kb Reader
}

// NewListRulesTool creates a ListRulesTool.
func NewListRulesTool(kb Reader) *ListRulesTool {
	return &ListRulesTool{kb: kb}
}

// Definition returns the MCP tool definition for registration.
func (t *ListRulesTool) Definition() mcp.Tool {
	return mcp.NewTool("hb_list_rules",
		mcp.WithDescription(
			"List rules generated from upstream release notes, newest first. Draft rules "+
				"do not take part in detection until reviewed with hb_review_rule.",
		),
		mcp.WithString("status",
			mcp.Description("Optional review status filter. Omit to list all generated rules."),
			mcp.Enum("draft", "approved", "rejected"),
		),
	)
}

// Handle processes the hb_list_rules tool call.
func (t *ListRulesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var status rules.ReviewStatus
	if raw := strings.TrimSpace(req.GetString("status", "")); raw != "" {
		st, err := rules.ParseReviewStatus(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		status = st
	}

	rs := t.kb.DynamicRules(status)

	var sb strings.Builder
	if status != "" {
		fmt.Fprintf(&sb, "# Generated Rules: %s (%d)\n\n", status, len(rs))
	} else {
		fmt.Fprintf(&sb, "# Generated Rules (%d)\n\n", len(rs))
	}
	if len(rs) == 0 {
		sb.WriteString("No generated rules. Rules appear after an update cycle finds deprecations in release notes.\n")
		return mcp.NewToolResultText(sb.String()), nil
	}
	for _, r := range rs {
		writeRule(&sb, r)
	}
	return mcp.NewToolResultText(sb.String()), nil
}
