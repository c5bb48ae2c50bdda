// Package prompts implements the hbadvisor MCP prompts.
//
// Prompts are user-triggered workflows (like slash commands) that tell the
// assistant which tools to run and in what order.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ReviewCodePrompt handles the hb-review-code MCP prompt.
type ReviewCodePrompt struct{}

// NewReviewCodePrompt creates a ReviewCodePrompt.
func NewReviewCodePrompt() *ReviewCodePrompt {
	return &ReviewCodePrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ReviewCodePrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("hb-review-code",
		mcp.WithPromptDescription(
			"Review Hummingbird code against the architecture rules and explain how to "+
				"fix each violation.",
		),
		mcp.WithArgument("code",
			mcp.RequiredArgument(),
			mcp.ArgumentDescription("The Swift code to review"),
		),
		mcp.WithArgument("file_path",
			mcp.ArgumentDescription("Optional path of the file the code comes from"),
		),
	)
}

// Handle processes the hb-review-code prompt request.
func (p *ReviewCodePrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	var code, filePath string
	if args := req.Params.Arguments; args != nil {
		code = args["code"]
		filePath = strings.TrimSpace(args["file_path"])
	}
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("argument 'code' is required")
	}

	call := "`hb_detect_violations` with the code below"
	if filePath != "" {
		call = fmt.Sprintf("`hb_detect_violations` with the code below and file_path=%q", filePath)
	}

	text := fmt.Sprintf(
		"Please review this Hummingbird code.\n\n"+
			"1. Run %s.\n"+
			"2. If the report starts with BLOCKED, say so first: the code must not be used as is.\n"+
			"3. For each violation, read the referenced guidance with `hb_get_entry` and explain "+
			"the problem and the fix in terms of my code.\n"+
			"4. Show a corrected version of the code.\n"+
			"5. If there are no violations, check `hb_list_pitfalls` and point out anything "+
			"the rules cannot catch.\n\n"+
			"```swift\n%s\n```",
		call, code,
	)

	return &mcp.GetPromptResult{
		Description: "Review Hummingbird code",
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(text),
			},
		},
	}, nil
}
