// Package mcptools exposes the engine as MCP tools for local agents.
//
// Each tool is a struct holding the engine, with Definition returning the
// tool schema and Handle serving a call. Results are JSON text.
package mcptools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lazypower/pulse/internal/engine"
)

// NewServer registers every pulse tool on a fresh MCP server.
func NewServer(eng *engine.Engine, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"pulse",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	observe := NewObserveTool(eng)
	s.AddTool(observe.Definition(), observe.Handle)

	profile := NewProfileTool(eng)
	s.AddTool(profile.Definition(), profile.Handle)

	match := NewMatchTool(eng)
	s.AddTool(match.Definition(), match.Handle)

	top := NewTopTagsTool(eng)
	s.AddTool(top.Definition(), top.Handle)

	return s
}

// intArg reads a numeric argument. JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

func floatArg(req mcp.CallToolRequest, key string) float64 {
	v, _ := req.GetArguments()[key].(float64)
	return v
}

// listArg accepts either a JSON array of strings or a comma-separated string.
func listArg(req mcp.CallToolRequest, key string) []string {
	var out []string
	switch v := req.GetArguments()[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
