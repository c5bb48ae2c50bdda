package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// PitfallsTool handles the hb_list_pitfalls MCP tool.
type PitfallsTool struct {
	kb Reader
}

// NewPitfallsTool creates a PitfallsTool.
func NewPitfallsTool(kb Reader) *PitfallsTool {
	return &PitfallsTool{kb: kb}
}

// Definition returns the MCP tool definition for registration.
func (t *PitfallsTool) Definition() mcp.Tool {
	return mcp.NewTool("hb_list_pitfalls",
		mcp.WithDescription(
			"List common Hummingbird mistakes and how to avoid them. Read these before "+
				"writing new Hummingbird code.",
		),
	)
}

// Handle processes the hb_list_pitfalls tool call.
func (t *PitfallsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pitfalls := t.kb.Pitfalls()

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Hummingbird Pitfalls (%d)\n\n", len(pitfalls))
	if len(pitfalls) == 0 {
		sb.WriteString("No pitfalls recorded.\n")
	}
	for _, e := range pitfalls {
		writeEntry(&sb, e, false)
	}
	return mcp.NewToolResultText(sb.String()), nil
}
