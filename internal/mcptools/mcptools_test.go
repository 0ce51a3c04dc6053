package mcptools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lazypower/pulse/internal/engine"
	"github.com/lazypower/pulse/internal/taxonomy"
)

const testTaxonomyYAML = `
sectors:
  shopping:
    apparel:
      purchase_intent:
        keywords: ["cart"]
        domains: ["shop.example.com"]
        weight: 1.0
intents:
  - label: cart_activity
    boost: 2.0
    url_patterns: ["/cart"]
    dom_selectors: [".add-to-cart"]
`

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	tax, err := taxonomy.Parse([]byte(testTaxonomyYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	eng := engine.New(engine.Options{Taxonomy: tax})
	t.Cleanup(eng.Stop)
	return eng
}

func makeReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestObserveTool_Definition(t *testing.T) {
	def := NewObserveTool(newTestEngine(t)).Definition()
	if def.Name != "pulse_observe" {
		t.Errorf("name = %q", def.Name)
	}
	for _, p := range []string{"url", "title", "content", "session_id", "selectors"} {
		if _, ok := def.InputSchema.Properties[p]; !ok {
			t.Errorf("missing %q parameter", p)
		}
	}
}

func TestObserveTool_Handle(t *testing.T) {
	eng := newTestEngine(t)
	tool := NewObserveTool(eng)

	res, err := tool.Handle(context.Background(), makeReq(map[string]any{
		"url":       "https://shop.example.com/cart",
		"content":   "your cart",
		"selectors": ".add-to-cart, .checkout",
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(res))
	}

	var p engine.ExportedProfile
	if err := json.Unmarshal([]byte(resultText(res)), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.TagCounts["shopping/apparel/purchase_intent"] == 0 {
		t.Errorf("tag counts = %v", p.TagCounts)
	}
	if p.IntentBoosts["shopping/apparel"] != 2.0 {
		t.Errorf("boosts = %v", p.IntentBoosts)
	}
	if len(p.Commitment) != 64 {
		t.Errorf("commitment = %q", p.Commitment)
	}
}

func TestObserveTool_MissingEvidence(t *testing.T) {
	res, err := NewObserveTool(newTestEngine(t)).Handle(context.Background(), makeReq(map[string]any{}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !res.IsError {
		t.Error("expected tool error for empty observation")
	}
}

func TestMatchAndProfileTools(t *testing.T) {
	eng := newTestEngine(t)
	eng.ProcessObservation(engine.Observation{URL: "https://shop.example.com/cart", Content: "cart"})

	res, _ := NewMatchTool(eng).Handle(context.Background(), makeReq(nil))
	var m engine.MatchingExport
	if err := json.Unmarshal([]byte(resultText(res)), &m); err != nil {
		t.Fatalf("decode match: %v", err)
	}
	if len(m.Interests) != 1 || m.Interests[0].Sector != "shopping/apparel" || !m.Interests[0].HasIntent {
		t.Errorf("interests = %+v", m.Interests)
	}

	res, _ = NewProfileTool(eng).Handle(context.Background(), makeReq(nil))
	if !strings.Contains(resultText(res), `"ptaScore"`) {
		t.Errorf("profile = %s", resultText(res))
	}
}

func TestTopTagsTool(t *testing.T) {
	eng := newTestEngine(t)
	eng.ProcessObservation(engine.Observation{URL: "https://shop.example.com/cart", Content: "cart"})

	res, _ := NewTopTagsTool(eng).Handle(context.Background(), makeReq(map[string]any{"limit": float64(500)}))
	var tags []engine.TagView
	if err := json.Unmarshal([]byte(resultText(res)), &tags); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tags) != 1 || tags[0].D1 <= 0 {
		t.Errorf("tags = %+v", tags)
	}
}

func TestListArg(t *testing.T) {
	req := makeReq(map[string]any{
		"a": []any{" .x ", "", 3, ".y"},
		"b": ".x,,.y ",
	})
	if got := listArg(req, "a"); len(got) != 2 || got[0] != ".x" || got[1] != ".y" {
		t.Errorf("array = %v", got)
	}
	if got := listArg(req, "b"); len(got) != 2 || got[1] != ".y" {
		t.Errorf("string = %v", got)
	}
	if got := listArg(req, "missing"); got != nil {
		t.Errorf("missing = %v", got)
	}
}

func TestNewServer(t *testing.T) {
	if NewServer(newTestEngine(t), "test") == nil {
		t.Fatal("NewServer returned nil")
	}
}
