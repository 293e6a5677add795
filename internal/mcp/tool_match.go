package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/see-the-code/internal/codemap"
	"github.com/mvp-joe/see-the-code/internal/match"
)

// MatchRequest is the argument schema of stc_match.
type MatchRequest struct {
	HTML string `json:"html"`
}

// MatchResponse mirrors the HTTP /match response.
type MatchResponse struct {
	Matched  bool            `json:"matched"`
	Selector string          `json:"selector,omitempty"`
	Record   *codemap.Record `json:"record,omitempty"`
	Tier     string          `json:"tier,omitempty"`
}

// AddMatchTool registers the stc_match tool with an MCP server.
func AddMatchTool(s *server.MCPServer, index *Index) {
	tool := mcp.NewTool(
		"stc_match",
		mcp.WithDescription(`Resolve a rendered DOM element to the component source that produced it.

Pass the element's outer HTML. The first element of the snippet is matched
by structure (classes, id, data attributes, tag), then by its visible text,
then by partial class/id tokens. The tier that matched is reported.`),
		mcp.WithString("html",
			mcp.Required(),
			mcp.Description("Outer HTML of the element, e.g. <button class=\"btn primary\">Save</button>")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createMatchHandler(index))
}

func createMatchHandler(index *Index) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args MatchRequest
		if err := coerceBindArguments(request, &args); err != nil {
			return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
		}
		if args.HTML == "" {
			return mcp.NewToolResultError("html parameter is required"), nil
		}

		res, ok, err := index.MatchHTML(args.HTML)
		if errors.Is(err, match.ErrNoElement) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err != nil {
			return nil, fmt.Errorf("match failed: %w", err)
		}
		if !ok {
			return marshalToolResponse(MatchResponse{Matched: false})
		}

		rec := res.Record
		return marshalToolResponse(MatchResponse{
			Matched:  true,
			Selector: res.Key,
			Record:   &rec,
			Tier:     res.Tier.String(),
		})
	}
}
