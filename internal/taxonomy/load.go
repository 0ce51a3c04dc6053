package taxonomy

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultDoc []byte

type leafDoc struct {
	Patterns []string `yaml:"patterns"`
	Keywords []string `yaml:"keywords"`
	Domains  []string `yaml:"domains"`
	Weight   float64  `yaml:"weight"`
}

type intentDoc struct {
	Label           string   `yaml:"label"`
	Boost           float64  `yaml:"boost"`
	URLPatterns     []string `yaml:"url_patterns"`
	DOMSelectors    []string `yaml:"dom_selectors"`
	ContentPatterns []string `yaml:"content_patterns"`
	PriceSignal     bool     `yaml:"price_signal"`
}

// document is the on-disk shape: sectors → subsectors → intent-states → leaf.
type document struct {
	Sectors map[string]map[string]map[string]leafDoc `yaml:"sectors"`
	Intents []intentDoc                              `yaml:"intents"`
}

// Load reads and validates a taxonomy file. Read or decode failures are
// returned; invalid entries inside a readable file are dropped and reported
// through Rejected.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	t, err := parse(path, data)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Parse builds a taxonomy from YAML bytes.
func Parse(data []byte) (*Taxonomy, error) {
	return parse("inline", data)
}

// Default returns the built-in taxonomy.
func Default() *Taxonomy {
	t, err := parse("default", defaultDoc)
	if err != nil {
		// default.yaml is compiled in; a decode failure is a build defect.
		panic(fmt.Sprintf("taxonomy: embedded default is invalid: %v", err))
	}
	return t
}

// DefaultIntents returns the built-in intent labels.
func DefaultIntents() []IntentLabel {
	return Default().Intents()
}

func parse(source string, data []byte) (*Taxonomy, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode taxonomy %s: %w", source, err)
	}

	var rejected []error
	var leaves []*Leaf
	for sector, subs := range doc.Sectors {
		for subsector, states := range subs {
			for state, ld := range states {
				leaf, err := buildLeaf(sector, subsector, state, ld)
				if err != nil {
					rejected = append(rejected, err)
					continue
				}
				leaves = append(leaves, leaf)
			}
		}
	}

	var intents []IntentLabel
	if len(doc.Intents) == 0 && source != "default" {
		intents = DefaultIntents()
	}
	seen := make(map[string]bool, len(doc.Intents))
	for _, id := range doc.Intents {
		label, err := buildIntent(id)
		if err != nil {
			rejected = append(rejected, err)
			continue
		}
		if seen[label.Label] {
			rejected = append(rejected, fmt.Errorf("intent %q: duplicate label", label.Label))
			continue
		}
		seen[label.Label] = true
		intents = append(intents, label)
	}

	return newTaxonomy(source, leaves, intents, rejected), nil
}

func buildLeaf(sector, subsector, state string, ld leafDoc) (*Leaf, error) {
	sector, subsector, state = cleanName(sector), cleanName(subsector), cleanName(state)
	path := JoinPath(sector, subsector, state)

	var errs []error
	for _, name := range []string{sector, subsector, state} {
		if name == "" {
			errs = append(errs, errors.New("empty path component"))
		} else if strings.Contains(name, Separator) {
			errs = append(errs, fmt.Errorf("component %q contains %q", name, Separator))
		}
	}
	if ld.Weight <= 0 || math.IsNaN(ld.Weight) || math.IsInf(ld.Weight, 0) {
		errs = append(errs, fmt.Errorf("weight %v must be > 0", ld.Weight))
	}

	leaf := &Leaf{
		Sector:      sector,
		Subsector:   subsector,
		IntentState: state,
		Patterns:    cleanList(ld.Patterns, strings.ToLower),
		Keywords:    cleanList(ld.Keywords, strings.ToLower),
		Domains:     cleanList(ld.Domains, NormalizeHost),
		Weight:      ld.Weight,
	}
	if len(leaf.Patterns)+len(leaf.Keywords)+len(leaf.Domains) == 0 {
		errs = append(errs, errors.New("no patterns, keywords or domains"))
	}

	res, err := compileKeywords(leaf.Keywords)
	if err != nil {
		errs = append(errs, err)
	}
	leaf.keywordRes = res

	if len(errs) > 0 {
		return nil, fmt.Errorf("leaf %q: %w", path, errors.Join(errs...))
	}
	return leaf, nil
}

func buildIntent(id intentDoc) (IntentLabel, error) {
	label := IntentLabel{
		Label:           cleanName(id.Label),
		Boost:           id.Boost,
		URLPatterns:     cleanList(id.URLPatterns, strings.ToLower),
		DOMSelectors:    cleanList(id.DOMSelectors, strings.TrimSpace),
		ContentPatterns: cleanList(id.ContentPatterns, strings.ToLower),
		PriceSignal:     id.PriceSignal,
	}
	if label.Label == "" {
		return label, errors.New("intent: empty label")
	}
	if label.Boost < 1 || math.IsNaN(label.Boost) || math.IsInf(label.Boost, 0) {
		return label, fmt.Errorf("intent %q: boost %v must be >= 1", label.Label, id.Boost)
	}
	return label, nil
}

func cleanName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// cleanList normalizes entries, dropping empties and duplicates.
func cleanList(in []string, norm func(string) string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(norm(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
