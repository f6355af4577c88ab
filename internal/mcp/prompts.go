package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("review_form_report",
		mcp.WithPromptDescription("Generate a form report and check its columns and first rows"),
		mcp.WithArgument("formId",
			mcp.ArgumentDescription("Form to report on"),
			mcp.RequiredArgument(),
		),
	), s.handleReviewPrompt)
}

func (s *Server) handleReviewPrompt(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	formID := req.Params.Arguments["formId"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Review the report of form %s", formID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Produce and review the report of form "%s":

1. Run generate_form_report with formId "%s" and note the report id and status.
2. If the status is "failed", report the error and stop.
3. Run preview_report on the report id and list the column names.
4. Point out empty columns, roster columns (suffix _rNN) and multi-select columns (one per choice).
5. Mention any missingPhotos or excluded question ids from step 1.`, formID, formID),
				},
			},
		},
	}, nil
}
