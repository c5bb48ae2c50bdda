package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ListEntriesTool handles the hb_list_entries MCP tool.
type ListEntriesTool struct {
	kb Reader
}

// NewListEntriesTool creates a ListEntriesTool.
func NewListEntriesTool(kb Reader) *ListEntriesTool {
	return &ListEntriesTool{kb: kb}
}

// Definition returns the MCP tool definition for registration.
func (t *ListEntriesTool) Definition() mcp.Tool {
	return mcp.NewTool("hb_list_entries",
		mcp.WithDescription(
			"List Hummingbird knowledge entries, optionally filtered by architecture layer "+
				"(application, router, controller, middleware, service, configuration, testing).",
		),
		mcp.WithString("layer",
			mcp.Description("Optional layer filter (case-insensitive). Omit to list everything."),
		),
	)
}

// Handle processes the hb_list_entries tool call.
func (t *ListEntriesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layer := strings.TrimSpace(req.GetString("layer", ""))
	entries := t.kb.Entries(layer)

	var sb strings.Builder
	if layer != "" {
		fmt.Fprintf(&sb, "# Knowledge Entries: %s layer (%d)\n\n", layer, len(entries))
	} else {
		fmt.Fprintf(&sb, "# Knowledge Entries (%d)\n\n", len(entries))
	}

	if len(entries) == 0 {
		sb.WriteString("No entries found.\n")
		return mcp.NewToolResultText(sb.String()), nil
	}

	for _, e := range entries {
		fmt.Fprintf(&sb, "- `%s` **%s** (%s", e.ID, e.Title, e.Kind)
		if e.Layer != "" {
			fmt.Fprintf(&sb, ", %s", e.Layer)
		}
		sb.WriteString(")\n")
	}
	sb.WriteString("\nUse hb_get_entry for the full text of an entry.\n")
	return mcp.NewToolResultText(sb.String()), nil
}
