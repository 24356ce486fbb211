// Package prompts implements MCP prompt handlers for the note store.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
)

const defaultReviewCount = 10

// ReviewPrompt handles the sidenote-review MCP prompt.
// It walks the AI through tidying recent notes and the tag set.
type ReviewPrompt struct{}

// NewReviewPrompt creates a ReviewPrompt.
func NewReviewPrompt() *ReviewPrompt {
	return &ReviewPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ReviewPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("sidenote-review",
		mcp.WithPromptDescription(
			"Review recent notes: summarise them, suggest tags, "+
				"and clean up tags nobody uses.",
		),
		mcp.WithArgument("count",
			mcp.ArgumentDescription("How many recent notes to review. Default: 10"),
		),
		mcp.WithArgument("tag",
			mcp.ArgumentDescription("Only review notes carrying this tag"),
		),
	)
}

// Handle processes the sidenote-review prompt request.
func (p *ReviewPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	count := defaultReviewCount
	tag := ""
	if args := req.Params.Arguments; args != nil {
		if v, ok := args["count"]; ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("count must be a positive integer, got %q", v)
			}
			count = n
		}
		tag = args["tag"]
	}

	fetch := fmt.Sprintf("Run `note_list` with order_by='updated_at' and limit=%d.", count)
	desc := fmt.Sprintf("Review the %d most recent notes", count)
	if tag != "" {
		fetch = fmt.Sprintf("Run `tag_get` with name='%s', then `note_list` with its id in tag_ids, "+
			"order_by='updated_at' and limit=%d.", tag, count)
		desc += fmt.Sprintf(" tagged %q", tag)
	}

	return &mcp.GetPromptResult{
		Description: desc,
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please review my notes.\n\n" +
						"1. " + fetch + "\n" +
						"2. Give me a one-line summary of each note\n" +
						"3. Suggest tags for untagged notes; use `tag_get_or_create` and `note_add_tag` only after I agree\n" +
						"4. Run `tag_unused` and ask whether I want those tags deleted with `tag_delete`\n" +
						"5. Finish with the numbers from `app_stats`",
				),
			},
		},
	}, nil
}
