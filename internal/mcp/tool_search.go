package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SearchRequest is the argument schema of stc_search.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	Kind  string `json:"kind,omitempty"`
	File  string `json:"file,omitempty"`
}

// SearchResponse is the stc_search result.
type SearchResponse struct {
	Query         string          `json:"query"`
	Results       []*SearchResult `json:"results"`
	TotalReturned int             `json:"total_returned"`
	TookMs        int             `json:"took_ms"`
}

var validKinds = map[string]bool{"class": true, "id": true, "data": true, "element": true}

// AddSearchTool registers the stc_search tool with an MCP server.
func AddSearchTool(s *server.MCPServer, index *Index) {
	tool := mcp.NewTool(
		"stc_search",
		mcp.WithDescription(`Full-text search over the code map using bleve query syntax.

Fields: selector, token (kebab-case form), kind, file, inner_text.

Examples:
- button - any selector or text mentioning "button"
- inner_text:"save changes" - elements rendering that text
- selector:todo* - selectors starting with "todo"
- token:save-button - camelCase keys by their kebab-case words`),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Bleve query string")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (1-100, default: 15)")),
		mcp.WithString("kind",
			mcp.Description("Restrict to one selector kind"),
			mcp.Enum("class", "id", "data", "element")),
		mcp.WithString("file",
			mcp.Description("Wildcard over the source file path, e.g. src/components/*")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createSearchHandler(index))
}

func createSearchHandler(index *Index) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		startTime := time.Now()

		var args SearchRequest
		if err := coerceBindArguments(request, &args); err != nil {
			return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
		}
		if args.Query == "" {
			return mcp.NewToolResultError("query parameter is required"), nil
		}
		if args.Kind != "" && !validKinds[args.Kind] {
			return mcp.NewToolResultError(fmt.Sprintf("invalid kind %q", args.Kind)), nil
		}

		results, err := index.Search(ctx, args.Query, SearchOptions{
			Limit: args.Limit,
			Kind:  args.Kind,
			File:  args.File,
		})
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}

		return marshalToolResponse(&SearchResponse{
			Query:         args.Query,
			Results:       results,
			TotalReturned: len(results),
			TookMs:        int(time.Since(startTime).Milliseconds()),
		})
	}
}
