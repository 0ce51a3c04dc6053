package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lazypower/pulse/internal/engine"
	"github.com/lazypower/pulse/internal/signal"
)

// ObserveTool handles the pulse_observe MCP tool.
type ObserveTool struct {
	eng *engine.Engine
}

// NewObserveTool creates an ObserveTool.
func NewObserveTool(eng *engine.Engine) *ObserveTool {
	return &ObserveTool{eng: eng}
}

// Definition returns the MCP tool definition for pulse_observe.
func (t *ObserveTool) Definition() mcp.Tool {
	return mcp.NewTool("pulse_observe",
		mcp.WithDescription(
			"Feed one page observation into the local interest profile and return the updated export.",
		),
		mcp.WithString("url", mcp.Description("Page URL")),
		mcp.WithString("title", mcp.Description("Page title")),
		mcp.WithString("content", mcp.Description("Visible page text, truncated to 20 KiB")),
		mcp.WithString("description", mcp.Description("Meta description")),
		mcp.WithString("session_id", mcp.Description("Session identifier (generated when empty)")),
		mcp.WithNumber("time_on_page", mcp.Description("Dwell time in seconds")),
		mcp.WithNumber("scroll_depth", mcp.Description("Scroll depth in percent")),
		mcp.WithNumber("interaction_count", mcp.Description("Number of clicks and inputs")),
		mcp.WithString("selectors", mcp.Description("Comma-separated DOM selectors that matched on the page")),
	)
}

// Handle processes the pulse_observe tool call.
func (t *ObserveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	obs := engine.Observation{
		URL:              req.GetString("url", ""),
		Title:            req.GetString("title", ""),
		Content:          req.GetString("content", ""),
		Meta:             signal.Meta{Description: req.GetString("description", "")},
		SessionID:        req.GetString("session_id", ""),
		TimeOnPage:       floatArg(req, "time_on_page"),
		ScrollDepth:      floatArg(req, "scroll_depth"),
		InteractionCount: intArg(req, "interaction_count", 0),
		DOMSignals:       signal.DOMSignals{MatchedSelectors: listArg(req, "selectors")},
	}
	if obs.URL == "" && obs.Title == "" && obs.Content == "" {
		return mcp.NewToolResultError("one of 'url', 'title' or 'content' is required"), nil
	}
	return jsonResult(t.eng.ProcessObservation(obs))
}
