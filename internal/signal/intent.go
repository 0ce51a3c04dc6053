package signal

import (
	"regexp"
	"strings"

	"github.com/lazypower/pulse/internal/taxonomy"
)

// DefaultIntentLabel is returned when no configured label matches.
const DefaultIntentLabel = "research_phase"

// priceBonus is the fractional match credited for currency-like text.
const priceBonus = 0.5

var priceRegexp = regexp.MustCompile(`(?i)(?:[$€£¥]\s?\d{1,3}(?:[,.]\d{3})*(?:[.,]\d{2})?|\d+[.,]\d{2}\s?(?:usd|eur|gbp)\b)`)

// DOMSignals carries selector hits observed by the host page script.
type DOMSignals struct {
	MatchedSelectors []string `json:"matchedSelectors,omitempty"`
}

// IntentLevel is the detected purchase-funnel stage.
type IntentLevel struct {
	Type    string  `json:"type"`
	Boost   float64 `json:"boost"`
	Matches float64 `json:"matches,omitempty"`
}

// NeutralIntent is the fail-open default.
func NeutralIntent() IntentLevel {
	return IntentLevel{Type: DefaultIntentLabel, Boost: 1.0}
}

// HasPrice reports whether content contains currency-like price text.
func HasPrice(content string) bool {
	return priceRegexp.MatchString(content)
}

// DetectIntent classifies an observation against the configured labels.
// The matching label with the highest boost wins; match counts only gate
// eligibility. A label must strictly beat the running best, so ties keep the
// earlier label and nothing below the neutral 1.0 can win.
func DetectIntent(labels []taxonomy.IntentLabel, rawURL string, dom DOMSignals, content string) IntentLevel {
	best := NeutralIntent()
	if len(labels) == 0 || (rawURL == "" && content == "" && len(dom.MatchedSelectors) == 0) {
		return best
	}

	lowerURL := strings.ToLower(rawURL)
	lowerContent := strings.ToLower(content)
	hasPrice := HasPrice(content)

	selectors := make(map[string]bool, len(dom.MatchedSelectors))
	for _, s := range dom.MatchedSelectors {
		selectors[strings.TrimSpace(s)] = true
	}

	for _, label := range labels {
		var matches float64
		for _, p := range label.URLPatterns {
			if strings.Contains(lowerURL, p) {
				matches++
			}
		}
		for _, sel := range label.DOMSelectors {
			if selectors[sel] {
				matches++
			}
		}
		for _, p := range label.ContentPatterns {
			if strings.Contains(lowerContent, p) {
				matches++
			}
		}
		if label.PriceSignal && hasPrice {
			matches += priceBonus
		}

		if matches > 0 && label.Boost > best.Boost {
			best = IntentLevel{Type: label.Label, Boost: label.Boost, Matches: matches}
		}
	}
	return best
}
