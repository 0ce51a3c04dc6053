package engine

import (
	"sort"

	"github.com/lazypower/pulse/internal/counter"
	"github.com/lazypower/pulse/internal/session"
)

// ExportedProfile is the privacy-shaped view of the engine's state.
type ExportedProfile struct {
	TagCounts    map[string]float64 `json:"tagCounts"`
	IntentBoosts map[string]float64 `json:"intentBoosts"`
	PtAScore     float64            `json:"ptaScore"`
	GeoBucket    string             `json:"geoBucket,omitempty"`
	Timestamp    int64              `json:"timestamp"`
	Commitment   string             `json:"commitment"`
}

// Interest is one ranked sector/subsector in a matching export.
type Interest struct {
	Sector    string  `json:"sector"`
	Score     float64 `json:"score"`
	HasIntent bool    `json:"hasIntent"`
}

// MatchingExport is the ranked interest view for quest and ad matching.
type MatchingExport struct {
	Interests  []Interest `json:"interests"`
	PtAScore   float64    `json:"ptaScore"`
	GeoBucket  string     `json:"geoBucket,omitempty"`
	Timestamp  int64      `json:"timestamp"`
	Commitment string     `json:"commitment"`
}

// DebugProfile exposes raw state for operational tooling. It is never
// gated, committed or persisted, and must not be shipped off-device.
type DebugProfile struct {
	View           string               `json:"view"`
	Timestamp      int64                `json:"timestamp"`
	Tags           []counter.TagCounter `json:"tags"`
	Boosts         []counter.BoostState `json:"boosts"`
	Sessions       []session.Entry      `json:"sessions"`
	OverallPtA     float64              `json:"overallPta"`
	GeoBucket      string               `json:"geoBucket,omitempty"`
	TaxonomySource string               `json:"taxonomySource"`
	TaxonomyLeaves int                  `json:"taxonomyLeaves"`
	PolicyVersion  string               `json:"policyVersion,omitempty"`
	// StaleTags are counted paths the loaded taxonomy no longer defines,
	// typically left over from a snapshot taken under an older taxonomy.
	StaleTags []string `json:"staleTags,omitempty"`
}

// TagView is one tag's current windows, as served by the tags endpoint.
type TagView struct {
	Path string  `json:"path"`
	D1   float64 `json:"d1"`
	D7   float64 `json:"d7"`
	D30  float64 `json:"d30"`
}

func tagView(c counter.TagCounter) TagView {
	return TagView{
		Path: c.Path,
		D1:   c.Count(counter.Short),
		D7:   c.Count(counter.Medium),
		D30:  c.Count(counter.Long),
	}
}

// rankAreas sums short-window counts per sector/subsector, strongest first.
func rankAreas(tags []counter.TagCounter, areaOf func(string) string) []Interest {
	sums := make(map[string]float64)
	for _, c := range tags {
		sums[areaOf(c.Path)] += c.Count(counter.Short)
	}
	out := make([]Interest, 0, len(sums))
	for area, score := range sums {
		out = append(out, Interest{Sector: area, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Sector < out[j].Sector
	})
	return out
}
