package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool and prompt names
const (
	SearchToolName   = "search"
	SearchPromptName = "search"
)

// searchTool returns the tool definition for search. The description is
// the operator-configured tool prompt.
func searchTool(description string) mcp.Tool {
	return mcp.NewTool(SearchToolName,
		mcp.WithDescription(description),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("A user query to search for"),
		),
	)
}

// searchPrompt returns the prompt definition for search
func searchPrompt() mcp.Prompt {
	return mcp.NewPrompt(SearchPromptName,
		mcp.WithPromptDescription("This prompt is for the `search` tool, which takes a query and returns the matching source texts"),
		mcp.WithArgument("query",
			mcp.ArgumentDescription("A user query to search for"),
			mcp.RequiredArgument(),
		),
	)
}
