package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/hbadvisor/internal/knowledge"
	"github.com/HendryAvila/hbadvisor/internal/rules"
)

// ReviewRuleTool handles the hb_review_rule MCP tool: the explicit step
// that lets a generated rule take part in detection.
type ReviewRuleTool struct {
	reviewer Reviewer
}

// NewReviewRuleTool creates a ReviewRuleTool.
func NewReviewRuleTool(r Reviewer) *ReviewRuleTool {
	return &ReviewRuleTool{reviewer: r}
}

// Definition returns the MCP tool definition for registration.
func (t *ReviewRuleTool) Definition() mcp.Tool {
	return mcp.NewTool("hb_review_rule",
		mcp.WithDescription(
			"Approve or reject a generated rule. Only approved rules are used by "+
				"hb_detect_violations. Confirm with the user before approving: a bad rule "+
				"produces false positives on every scan.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Rule id as shown by hb_list_rules, e.g. 'auto:v2.1.0:renamed:HBFoo'."),
		),
		mcp.WithString("decision",
			mcp.Required(),
			mcp.Description("'approve' or 'reject'."),
			mcp.Enum("approve", "reject"),
		),
	)
}

var decisions = map[string]rules.ReviewStatus{
	"approve": rules.StatusApproved,
	"reject":  rules.StatusRejected,
}

// Handle processes the hb_review_rule tool call.
func (t *ReviewRuleTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("id", ""))
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	decision := strings.ToLower(strings.TrimSpace(req.GetString("decision", "")))
	status, ok := decisions[decision]
	if !ok {
		return mcp.NewToolResultError("'decision' must be 'approve' or 'reject'"), nil
	}

	r, err := t.reviewer.SetReviewStatus(id, status)
	switch {
	case errors.Is(err, knowledge.ErrRuleNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("no generated rule with id %q; use hb_list_rules to see ids", id)), nil
	case errors.Is(err, knowledge.ErrStaticRule):
		return mcp.NewToolResultError(fmt.Sprintf("%q is a built-in rule and is always active", id)), nil
	case errors.Is(err, knowledge.ErrInvalidStatus):
		return mcp.NewToolResultError(err.Error()), nil
	case err != nil:
		return nil, fmt.Errorf("reviewing rule %s: %w", id, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Rule `%s` is now **%s**.\n\n", r.ID, r.ReviewStatus)
	writeRule(&sb, r)
	if r.ReviewStatus == rules.StatusApproved {
		sb.WriteString("\nIt will be applied by hb_detect_violations from now on.\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}
