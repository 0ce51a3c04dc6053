package taxonomy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleDoc = `
sectors:
  shopping:
    apparel:
      purchase_intent:
        patterns: ["Add To Cart"]
        keywords: ["cart", "jacket"]
        domains: ["www.Shop.Example.com"]
        weight: 1.5
    broken:
      zero_weight:
        keywords: ["x"]
        weight: 0
      no_evidence:
        weight: 1
intents:
  - label: cart_activity
    boost: 2.0
    url_patterns: ["/cart"]
  - label: bogus
    boost: 0.5
`

func TestParse(t *testing.T) {
	tax, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if tax.Len() != 1 {
		t.Fatalf("Len = %d, want 1", tax.Len())
	}
	leaf := tax.Lookup("shopping/apparel/purchase_intent")
	if leaf == nil {
		t.Fatal("expected shopping/apparel/purchase_intent leaf")
	}
	if leaf.Patterns[0] != "add to cart" {
		t.Errorf("pattern = %q, want lowercase", leaf.Patterns[0])
	}
	if leaf.Domains[0] != "shop.example.com" {
		t.Errorf("domain = %q, want shop.example.com", leaf.Domains[0])
	}
	if leaf.Area() != "shopping/apparel" {
		t.Errorf("Area = %q", leaf.Area())
	}

	// two bad leaves + one bad intent
	if got := len(tax.Rejected()); got != 3 {
		t.Errorf("Rejected = %d, want 3: %v", got, tax.Rejected())
	}

	if len(tax.Intents()) != 1 || tax.Intents()[0].Label != "cart_activity" {
		t.Errorf("Intents = %+v, want only cart_activity", tax.Intents())
	}
}

func TestParseFallsBackToDefaultIntents(t *testing.T) {
	tax, err := Parse([]byte(`
sectors:
  news:
    tech:
      research:
        keywords: ["golang"]
        weight: 1
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(tax.Intents()) == 0 {
		t.Fatal("expected default intents when none configured")
	}
}

func TestParseMalformed(t *testing.T) {
	if _, err := Parse([]byte("sectors: [not, a, map")); err == nil {
		t.Error("expected decode error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tax.yaml")
	if err := os.WriteFile(path, []byte(sampleDoc), 0644); err != nil {
		t.Fatal(err)
	}
	tax, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tax.Source() != path {
		t.Errorf("Source = %q, want %q", tax.Source(), path)
	}
}

func TestDefault(t *testing.T) {
	tax := Default()
	if tax.Len() == 0 {
		t.Fatal("default taxonomy is empty")
	}
	if len(tax.Rejected()) != 0 {
		t.Errorf("default taxonomy has rejected entries: %v", tax.Rejected())
	}

	labels := map[string]float64{}
	for _, l := range tax.Intents() {
		labels[l.Label] = l.Boost
	}
	if labels["cart_activity"] != 2.0 {
		t.Errorf("cart_activity boost = %v, want 2.0", labels["cart_activity"])
	}
	if _, ok := labels["research_phase"]; !ok {
		t.Error("missing research_phase label")
	}

	// leaves come back sorted
	leaves := tax.Leaves()
	for i := 1; i < len(leaves); i++ {
		if leaves[i-1].Path() > leaves[i].Path() {
			t.Fatalf("leaves not sorted: %s > %s", leaves[i-1].Path(), leaves[i].Path())
		}
	}
}

func TestLeafMatching(t *testing.T) {
	tax, _ := Parse([]byte(sampleDoc))
	leaf := tax.Lookup("shopping/apparel/purchase_intent")

	if n := leaf.KeywordMatches("my cart has a jacket"); n != 2 {
		t.Errorf("KeywordMatches = %d, want 2", n)
	}
	if n := leaf.KeywordMatches("cartography jackets"); n != 0 {
		t.Errorf("KeywordMatches partial words = %d, want 0", n)
	}
	if n := leaf.PatternMatches("please add to cart now"); n != 1 {
		t.Errorf("PatternMatches = %d, want 1", n)
	}

	hosts := []struct {
		host string
		want bool
	}{
		{"shop.example.com", true},
		{"WWW.shop.example.com", true},
		{"eu.shop.example.com", true},
		{"evilshop.example.com", false},
		{"", false},
	}
	for _, h := range hosts {
		if got := leaf.HasDomain(h.host); got != h.want {
			t.Errorf("HasDomain(%q) = %v, want %v", h.host, got, h.want)
		}
	}
}

func TestNilTaxonomy(t *testing.T) {
	var tax *Taxonomy
	if tax.Len() != 0 || tax.Leaves() != nil || tax.Intents() != nil || tax.Lookup("a/b/c") != nil {
		t.Error("nil taxonomy should behave as empty")
	}
}

func TestSplitPath(t *testing.T) {
	s, sub, st := SplitPath("a/b/c")
	if s != "a" || sub != "b" || st != "c" {
		t.Errorf("SplitPath = %q %q %q", s, sub, st)
	}
	if got := AreaOf("a/b/c"); got != "a/b" {
		t.Errorf("AreaOf = %q", got)
	}
	if got := AreaOf("solo"); got != "solo" {
		t.Errorf("AreaOf(solo) = %q", got)
	}
	if !strings.Contains(JoinPath("x", "y", "z"), "/") {
		t.Error("JoinPath should use separator")
	}
}
