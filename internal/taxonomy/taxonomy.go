// Package taxonomy holds the sector → subsector → intent-state tree that drives
// tag extraction, and the intent labels used for purchase-funnel detection.
//
// A Taxonomy is built once (Load, Parse or Default) and never mutated after.
package taxonomy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Separator joins the components of a tag path.
const Separator = "/"

// Leaf is one (sector, subsector, intent-state) entry.
type Leaf struct {
	Sector      string
	Subsector   string
	IntentState string
	Patterns    []string
	Keywords    []string
	Domains     []string
	Weight      float64

	keywordRes []*regexp.Regexp
}

// Path returns "sector/subsector/intent-state".
func (l *Leaf) Path() string {
	return JoinPath(l.Sector, l.Subsector, l.IntentState)
}

// Area returns "sector/subsector", the key used for intent boosts.
func (l *Leaf) Area() string {
	return l.Sector + Separator + l.Subsector
}

// PatternMatches counts distinct patterns that occur as substrings of text.
// text is expected to be lowercase already.
func (l *Leaf) PatternMatches(text string) int {
	n := 0
	for _, p := range l.Patterns {
		if strings.Contains(text, p) {
			n++
		}
	}
	return n
}

// KeywordMatches counts distinct keywords found as whole words in text.
func (l *Leaf) KeywordMatches(text string) int {
	n := 0
	for _, re := range l.keywordRes {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}

// HasDomain reports whether host is one of the leaf's domains or a subdomain of one.
func (l *Leaf) HasDomain(host string) bool {
	host = NormalizeHost(host)
	if host == "" {
		return false
	}
	for _, d := range l.Domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// IntentLabel is one configured purchase-funnel stage.
type IntentLabel struct {
	Label           string
	Boost           float64
	URLPatterns     []string
	DOMSelectors    []string
	ContentPatterns []string
	// PriceSignal lets currency-like text count as half a match for this label.
	PriceSignal bool
}

// Taxonomy is the immutable, validated taxonomy.
type Taxonomy struct {
	leaves   []*Leaf
	byPath   map[string]*Leaf
	intents  []IntentLabel
	rejected []error
	source   string
}

// Empty returns a taxonomy with no leaves and no intent labels.
func Empty() *Taxonomy {
	return &Taxonomy{byPath: map[string]*Leaf{}, source: "empty"}
}

// Leaves returns the leaves sorted by path. Safe on a nil receiver.
func (t *Taxonomy) Leaves() []*Leaf {
	if t == nil {
		return nil
	}
	return t.leaves
}

// Intents returns the configured intent labels in declaration order.
func (t *Taxonomy) Intents() []IntentLabel {
	if t == nil {
		return nil
	}
	return t.intents
}

// Len returns the number of valid leaves.
func (t *Taxonomy) Len() int {
	if t == nil {
		return 0
	}
	return len(t.leaves)
}

// Lookup returns the leaf for a tag path, or nil.
func (t *Taxonomy) Lookup(path string) *Leaf {
	if t == nil {
		return nil
	}
	return t.byPath[path]
}

// Rejected returns the validation errors of entries dropped at load time.
func (t *Taxonomy) Rejected() []error {
	if t == nil {
		return nil
	}
	return t.rejected
}

// Source describes where the taxonomy came from (file path, "default", "empty").
func (t *Taxonomy) Source() string {
	if t == nil {
		return "empty"
	}
	return t.source
}

// JoinPath builds a tag path from its components.
func JoinPath(parts ...string) string {
	return strings.Join(parts, Separator)
}

// SplitPath splits a tag path into sector, subsector and intent-state.
// Missing components come back empty.
func SplitPath(path string) (sector, subsector, intentState string) {
	parts := strings.SplitN(path, Separator, 3)
	switch len(parts) {
	case 3:
		return parts[0], parts[1], parts[2]
	case 2:
		return parts[0], parts[1], ""
	default:
		return parts[0], "", ""
	}
}

// AreaOf returns the "sector/subsector" prefix of a tag path.
func AreaOf(path string) string {
	sector, subsector, _ := SplitPath(path)
	if subsector == "" {
		return sector
	}
	return sector + Separator + subsector
}

// NormalizeHost lowercases a hostname and strips a leading "www.".
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}

func newTaxonomy(source string, leaves []*Leaf, intents []IntentLabel, rejected []error) *Taxonomy {
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].Path() < leaves[j].Path() })
	t := &Taxonomy{
		leaves:   leaves,
		byPath:   make(map[string]*Leaf, len(leaves)),
		intents:  intents,
		rejected: rejected,
		source:   source,
	}
	for _, l := range leaves {
		t.byPath[l.Path()] = l
	}
	return t
}

// Keyword boundaries are Unicode-aware, so "café" and "c++" match as words.
const (
	wordStart = `(?:^|[^\p{L}\p{N}_])`
	wordEnd   = `(?:$|[^\p{L}\p{N}_])`
)

func compileKeywords(keywords []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		re, err := regexp.Compile(wordStart + regexp.QuoteMeta(kw) + wordEnd)
		if err != nil {
			return nil, fmt.Errorf("keyword %q: %w", kw, err)
		}
		res = append(res, re)
	}
	return res, nil
}
