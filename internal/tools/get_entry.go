package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// GetEntryTool handles the hb_get_entry MCP tool.
type GetEntryTool struct {
	kb Reader
}

// NewGetEntryTool creates a GetEntryTool.
func NewGetEntryTool(kb Reader) *GetEntryTool {
	return &GetEntryTool{kb: kb}
}

// Definition returns the MCP tool definition for registration.
func (t *GetEntryTool) Definition() mcp.Tool {
	return mcp.NewTool("hb_get_entry",
		mcp.WithDescription(
			"Get the full text of one Hummingbird knowledge entry (pattern, pitfall or "+
				"release summary) by id. Violation reports reference entries by id.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Entry id, e.g. 'async-handlers' or 'hummingbird-latest-release'."),
		),
	)
}

// Handle processes the hb_get_entry tool call. An unknown id is a normal
// "not found" answer, not a tool error.
func (t *GetEntryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("id", ""))
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	e, ok := t.kb.Entry(id)
	if !ok {
		return mcp.NewToolResultText(fmt.Sprintf(
			"No knowledge entry with id %q. Use hb_list_entries to see available ids.", id)), nil
	}

	var sb strings.Builder
	writeEntry(&sb, e, true)
	return mcp.NewToolResultText(sb.String()), nil
}
