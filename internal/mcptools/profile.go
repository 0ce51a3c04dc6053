package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lazypower/pulse/internal/engine"
)

// ProfileTool handles the pulse_profile MCP tool.
type ProfileTool struct {
	eng *engine.Engine
}

// NewProfileTool creates a ProfileTool.
func NewProfileTool(eng *engine.Engine) *ProfileTool {
	return &ProfileTool{eng: eng}
}

// Definition returns the MCP tool definition for pulse_profile.
func (t *ProfileTool) Definition() mcp.Tool {
	return mcp.NewTool("pulse_profile",
		mcp.WithDescription(
			"Return the privacy-shaped interest profile: top tag counts, strong intent boosts, "+
				"overall probability-to-act and a fresh commitment.",
		),
	)
}

// Handle processes the pulse_profile tool call.
func (t *ProfileTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.eng.ExportProfile())
}

// MatchTool handles the pulse_match MCP tool.
type MatchTool struct {
	eng *engine.Engine
}

// NewMatchTool creates a MatchTool.
func NewMatchTool(eng *engine.Engine) *MatchTool {
	return &MatchTool{eng: eng}
}

// Definition returns the MCP tool definition for pulse_match.
func (t *MatchTool) Definition() mcp.Tool {
	return mcp.NewTool("pulse_match",
		mcp.WithDescription(
			"Return the ranked sector/subsector interests used for quest and ad matching.",
		),
	)
}

// Handle processes the pulse_match tool call.
func (t *MatchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.eng.ExportForMatching())
}

// TopTagsTool handles the pulse_top_tags MCP tool.
type TopTagsTool struct {
	eng *engine.Engine
}

// NewTopTagsTool creates a TopTagsTool.
func NewTopTagsTool(eng *engine.Engine) *TopTagsTool {
	return &TopTagsTool{eng: eng}
}

// Definition returns the MCP tool definition for pulse_top_tags.
func (t *TopTagsTool) Definition() mcp.Tool {
	return mcp.NewTool("pulse_top_tags",
		mcp.WithDescription(
			"List the strongest taxonomy tags with their d1, d7 and d30 counters. Local debugging only.",
		),
		mcp.WithNumber("limit",
			mcp.Description("Max tags (default: 10, max: 100)"),
		),
	)
}

// Handle processes the pulse_top_tags tool call.
func (t *TopTagsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := intArg(req, "limit", engine.DefaultTopN)
	if limit <= 0 {
		limit = engine.DefaultTopN
	}
	if limit > 100 {
		limit = 100
	}
	return jsonResult(t.eng.TopTags(limit))
}
