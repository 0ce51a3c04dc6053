package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/lazypower/pulse/internal/engine"
	"github.com/lazypower/pulse/internal/taxonomy"
)

const cartObservation = `{
	"url": "https://shop.example.com/cart",
	"content": "Add to cart $49.99",
	"domSignals": {"matchedSelectors": [".add-to-cart"]},
	"timeOnPage": 120,
	"scrollDepth": 80,
	"interactionCount": 5,
	"sessionId": "s1"
}`

func TestPostObservation(t *testing.T) {
	srv, db := testServer(t)

	w := do(t, srv, "POST", "/api/observations", cartObservation)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var p engine.ExportedProfile
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.TagCounts["shopping/apparel/purchase_intent"] != 1.4 {
		t.Errorf("tagCounts = %+v", p.TagCounts)
	}
	if p.PtAScore != 0.67 || p.GeoBucket != "us-west" || len(p.Commitment) != 64 {
		t.Errorf("profile = %+v", p)
	}

	n, err := db.GetSessionObservationCount("s1")
	if err != nil || n != 1 {
		t.Errorf("logged observations = %d, %v", n, err)
	}
}

func TestPostObservationInvalid(t *testing.T) {
	srv, _ := testServer(t)

	if w := do(t, srv, "POST", "/api/observations", `{not json`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	huge := `{"content":"` + strings.Repeat("x", maxObservationBody) + `"}`
	if w := do(t, srv, "POST", "/api/observations", huge); w.Code != http.StatusBadRequest {
		t.Errorf("oversized body: status = %d, want 400", w.Code)
	}
}

func TestProfileViews(t *testing.T) {
	srv, _ := testServer(t)
	do(t, srv, "POST", "/api/observations", cartObservation)

	w := do(t, srv, "GET", "/api/profile", "")
	var p map[string]any
	json.Unmarshal(w.Body.Bytes(), &p)
	if _, ok := p["tagCounts"]; !ok {
		t.Errorf("profile missing tagCounts: %s", w.Body.String())
	}
	if _, ok := p["view"]; ok {
		t.Error("privacy-shaped profile must not be the debug view")
	}

	w = do(t, srv, "GET", "/api/profile/debug", "")
	var dbg engine.DebugProfile
	if err := json.Unmarshal(w.Body.Bytes(), &dbg); err != nil {
		t.Fatal(err)
	}
	if dbg.View != "debug" || len(dbg.Tags) != 1 || len(dbg.Sessions) != 1 {
		t.Errorf("debug = %+v", dbg)
	}
}

func TestMatchRoute(t *testing.T) {
	srv, _ := testServer(t)
	do(t, srv, "POST", "/api/observations", cartObservation)

	w := do(t, srv, "GET", "/api/match", "")
	var m engine.MatchingExport
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatal(err)
	}
	if len(m.Interests) != 1 || m.Interests[0].Sector != "shopping/apparel" || !m.Interests[0].HasIntent {
		t.Errorf("interests = %+v", m.Interests)
	}
}

func TestTagsRoute(t *testing.T) {
	srv, _ := testServer(t)
	do(t, srv, "POST", "/api/observations", cartObservation)

	w := do(t, srv, "GET", "/api/tags?n=5", "")
	var body struct {
		Tags []engine.TagView `json:"tags"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if len(body.Tags) != 1 || body.Tags[0].D1 != 1.4 {
		t.Errorf("tags = %+v", body.Tags)
	}

	for _, bad := range []string{"/api/tags?n=abc", "/api/tags?n=-1"} {
		if w := do(t, srv, "GET", bad, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", bad, w.Code)
		}
	}
}

func TestSweepRoute(t *testing.T) {
	srv, _ := testServer(t)
	do(t, srv, "POST", "/api/observations", cartObservation)

	w := do(t, srv, "POST", "/api/sweep", "")
	var body map[string]float64
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["active_tags"] != 1 || body["removed_tags"] != 0 {
		t.Errorf("sweep = %+v", body)
	}
}

func TestExportsRoute(t *testing.T) {
	srv, _ := testServer(t)
	do(t, srv, "POST", "/api/observations", cartObservation)
	do(t, srv, "GET", "/api/match", "")

	w := do(t, srv, "GET", "/api/exports?limit=10", "")
	var body struct {
		Count   int `json:"count"`
		Exports []struct {
			View       string `json:"view"`
			Commitment string `json:"commitment"`
		} `json:"exports"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 2 || body.Exports[0].View != "matching" {
		t.Errorf("exports = %+v", body)
	}
	if strings.Contains(w.Body.String(), "shopping") {
		t.Error("export audit must not contain tag paths")
	}
}

func TestExportByCommitmentRoute(t *testing.T) {
	srv, _ := testServer(t)
	do(t, srv, "POST", "/api/observations", cartObservation)

	w := do(t, srv, "GET", "/api/match", "")
	var m engine.MatchingExport
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatal(err)
	}

	w = do(t, srv, "GET", "/api/exports/"+m.Commitment, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var e struct {
		View       string `json:"view"`
		Commitment string `json:"commitment"`
	}
	json.Unmarshal(w.Body.Bytes(), &e)
	if e.View != "matching" || e.Commitment != m.Commitment {
		t.Errorf("export = %+v, want matching %s", e, m.Commitment)
	}

	w = do(t, srv, "GET", "/api/exports/deadbeef", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown commitment status = %d, want 404", w.Code)
	}
}

func TestObservationLogRoute(t *testing.T) {
	srv, _ := testServer(t)
	do(t, srv, "POST", "/api/observations", cartObservation)
	do(t, srv, "POST", "/api/observations", cartObservation)

	w := do(t, srv, "GET", "/api/observations?session=s1&limit=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var body struct {
		Session      string `json:"session"`
		Total        int    `json:"total"`
		Count        int    `json:"count"`
		Observations []struct {
			SessionID string `json:"sessionId"`
			Host      string `json:"host"`
		} `json:"observations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Session != "s1" || body.Total != 2 || body.Count != 1 {
		t.Errorf("session log = %+v", body)
	}
	if len(body.Observations) == 1 && body.Observations[0].Host != "shop.example.com" {
		t.Errorf("host = %q", body.Observations[0].Host)
	}

	w = do(t, srv, "GET", "/api/observations", "")
	body.Count = 0
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Count != 2 {
		t.Errorf("recent count = %d, want 2", body.Count)
	}

	if w := do(t, srv, "GET", "/api/observations?limit=x", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", w.Code)
	}
}

func TestAuditRoutesWithoutStore(t *testing.T) {
	tax, err := taxonomy.Parse([]byte(testTaxonomy))
	if err != nil {
		t.Fatal(err)
	}
	eng := engine.New(engine.Options{Taxonomy: tax})
	t.Cleanup(eng.Stop)
	srv := New(eng, nil, "test-version")

	for _, path := range []string{"/api/observations", "/api/exports", "/api/exports/abc"} {
		if w := do(t, srv, "GET", path, ""); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", path, w.Code)
		}
	}
}
