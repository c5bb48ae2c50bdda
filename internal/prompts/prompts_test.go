package prompts

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func promptText(t *testing.T, r *mcp.GetPromptResult) string {
	t.Helper()
	require.NotNil(t, r)
	require.Len(t, r.Messages, 1)
	tc, ok := r.Messages[0].Content.(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestReviewCodePrompt(t *testing.T) {
	p := NewReviewCodePrompt()
	assert.Equal(t, "hb-review-code", p.Definition().Name)

	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"code": "let x = HBApplication()", "file_path": "App.swift"}

	r, err := p.Handle(context.Background(), req)
	require.NoError(t, err)
	text := promptText(t, r)
	assert.Contains(t, text, "hb_detect_violations")
	assert.Contains(t, text, `file_path="App.swift"`)
	assert.Contains(t, text, "let x = HBApplication()")
}

func TestReviewCodePrompt_RequiresCode(t *testing.T) {
	_, err := NewReviewCodePrompt().Handle(context.Background(), mcp.GetPromptRequest{})
	assert.Error(t, err)
}

func TestStatusPrompt(t *testing.T) {
	p := NewStatusPrompt()
	assert.Equal(t, "hb-status", p.Definition().Name)

	r, err := p.Handle(context.Background(), mcp.GetPromptRequest{})
	require.NoError(t, err)
	text := promptText(t, r)
	assert.Contains(t, text, "hbadvisor://knowledge/stats")
	assert.Contains(t, text, "hb_review_rule")
}
