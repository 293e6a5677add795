package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// LookupRequest is the argument schema of stc_lookup.
type LookupRequest struct {
	Selector string `json:"selector"`
}

// AddLookupTool registers the stc_lookup tool with an MCP server.
func AddLookupTool(s *server.MCPServer, index *Index) {
	tool := mcp.NewTool(
		"stc_lookup",
		mcp.WithDescription(`Find the source location of a selector key in the code map.

Keys use the code map format:
- .class-name
- #element-id
- [data-testid="value"]
- button (element type)

When the exact key is absent, a key with the same canonical form is
returned instead (".saveButton" finds ".save-button") and matched_by is
"canonical".`),
		mcp.WithString("selector",
			mcp.Required(),
			mcp.Description("Selector key, e.g. .todo-list or [data-testid=\"submit\"]")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createLookupHandler(index))
}

func createLookupHandler(index *Index) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args LookupRequest
		if err := coerceBindArguments(request, &args); err != nil {
			return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
		}

		key := strings.TrimSpace(args.Selector)
		if key == "" {
			return mcp.NewToolResultError("selector parameter is required"), nil
		}

		return marshalToolResponse(index.Lookup(key))
	}
}
