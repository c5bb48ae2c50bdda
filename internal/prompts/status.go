package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the hb-status MCP prompt.
// It asks the assistant to summarize the knowledge base and pending reviews.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("hb-status",
		mcp.WithPromptDescription(
			"Show what hbadvisor knows: latest release ingested, entry counts and "+
				"generated rules waiting for review.",
		),
	)
}

// Handle processes the hb-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "hbadvisor Knowledge Status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please read the `hbadvisor://knowledge/stats` resource and run " +
						"`hb_get_entry` with id='hummingbird-latest-release'.\n\n" +
						"Then:\n" +
						"1. Tell me which Hummingbird release the knowledge base reflects\n" +
						"2. Summarize entry and rule counts\n" +
						"3. Run `hb_list_rules` with status='draft' and walk me through each draft, " +
						"recommending approve or reject\n" +
						"4. Only call `hb_review_rule` after I confirm each decision",
				),
			},
		},
	}, nil
}
