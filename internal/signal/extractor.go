// Package signal holds the pure per-observation scorers: tag extraction,
// intent detection, behavioral engagement and Probability-to-Act.
package signal

import (
	"math"
	"net/url"
	"strings"

	"github.com/lazypower/pulse/internal/taxonomy"
)

// Raw evidence weights. Policy constants, not runtime tunables.
const (
	patternWeight = 0.3
	keywordWeight = 0.2
	domainWeight  = 0.5

	// minRawScore is the minimum evidence a leaf needs to become a candidate.
	minRawScore = 0.3
)

// Meta is the page metadata that contributes to tag text.
type Meta struct {
	Description string `json:"description,omitempty"`
	Keywords    string `json:"keywords,omitempty"`
	Author      string `json:"author,omitempty"`
	Type        string `json:"type,omitempty"`
}

// TagCandidate is one taxonomy leaf matched by an observation.
type TagCandidate struct {
	Path   string  `json:"path"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// ExtractTags matches an observation against every taxonomy leaf.
// An empty or nil taxonomy yields no candidates. Candidates are unordered.
func ExtractTags(tax *taxonomy.Taxonomy, rawURL, title, content string, meta Meta) []TagCandidate {
	leaves := tax.Leaves()
	if len(leaves) == 0 {
		return nil
	}

	text := strings.ToLower(strings.Join([]string{title, content, meta.Description}, " "))
	host := Hostname(rawURL)

	var out []TagCandidate
	for _, leaf := range leaves {
		raw := patternWeight*float64(leaf.PatternMatches(text)) +
			keywordWeight*float64(leaf.KeywordMatches(text))
		if leaf.HasDomain(host) {
			raw += domainWeight
		}
		// float sums like 0.1+0.2 land just under 0.3
		if raw+1e-9 < minRawScore {
			continue
		}
		out = append(out, TagCandidate{
			Path:   leaf.Path(),
			Score:  math.Min(raw*leaf.Weight, 1.0),
			Weight: leaf.Weight,
		})
	}
	return out
}

// Hostname returns the normalized host of rawURL, or "" when it cannot be parsed.
func Hostname(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if u.Host == "" && u.Scheme == "" {
		// bare "example.com/path"
		u, err = url.Parse("//" + rawURL)
		if err != nil {
			return ""
		}
	}
	return taxonomy.NormalizeHost(u.Hostname())
}
