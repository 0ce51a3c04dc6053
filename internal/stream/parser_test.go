package stream

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lazypower/pulse/internal/engine"
)

func TestParseLines(t *testing.T) {
	lines := `{"url":"https://shop.example.com/cart","content":"Add to cart","sessionId":"s1","timestamp":1700000000000}
{"type":"observation","observation":{"url":"https://news.example.org","title":"Weather","timeOnPage":30}}

{"url":"https://a.example","domSignals":{"matchedSelectors":[".add-to-cart"]},"meta":{"description":"d"}}`

	obs, st, err := ParseLines(lines)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}
	if len(obs) != 3 || st.Parsed != 3 || st.Lines != 3 || st.Skipped != 0 {
		t.Fatalf("got %d observations, stats %+v", len(obs), st)
	}
	if obs[0].SessionID != "s1" || obs[0].Timestamp != 1700000000000 {
		t.Errorf("obs[0] = %+v", obs[0])
	}
	if obs[1].Title != "Weather" || obs[1].TimeOnPage != 30 {
		t.Errorf("envelope not unwrapped: %+v", obs[1])
	}
	if len(obs[2].DOMSignals.MatchedSelectors) != 1 || obs[2].Meta.Description != "d" {
		t.Errorf("obs[2] = %+v", obs[2])
	}
}

func TestParseLinesSkipsMalformed(t *testing.T) {
	lines := `not json
{"type":"heartbeat","observation":{"url":"https://x.example"}}
{"sessionId":"empty"}
{"url":123}
{"url":"https://ok.example"}`

	obs, st, err := ParseLines(lines)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}
	if len(obs) != 1 || obs[0].URL != "https://ok.example" {
		t.Errorf("obs = %+v", obs)
	}
	if st.Skipped != 4 || st.Lines != 5 {
		t.Errorf("stats = %+v", st)
	}
}

func TestEachStopsOnError(t *testing.T) {
	lines := strings.Repeat(`{"url":"https://a.example"}`+"\n", 5)
	stop := errors.New("stop")

	n := 0
	st, err := Each(strings.NewReader(lines), func(engine.Observation) error {
		n++
		if n == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Errorf("err = %v, want stop", err)
	}
	if st.Parsed != 2 {
		t.Errorf("parsed = %d, want 2", st.Parsed)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.jsonl")
	if err := os.WriteFile(path, []byte(`{"url":"https://a.example"}`+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	obs, _, err := ParseFile(path)
	if err != nil || len(obs) != 1 {
		t.Fatalf("ParseFile = %+v, %v", obs, err)
	}

	if _, _, err := ParseFile(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("expected error for missing file")
	}
}
