// Package counter implements the time-decayed per-tag counter store and the
// per-area intent boost map.
//
// Decay is lazy: every read or write first brings the touched entries current
// from their stored LastUpdate, so there is no per-tag timer. A periodic Sweep
// decays everything and collects entries that have faded out.
//
// A Store is not safe for concurrent use; the engine serializes access.
package counter

import (
	"math"
	"sort"
	"time"

	"github.com/lazypower/pulse/internal/signal"
	"github.com/lazypower/pulse/internal/taxonomy"
)

// TagCounter holds the three windows of one tag.
type TagCounter struct {
	Path    string                  `json:"path"`
	Windows [numWindows]WindowState `json:"windows"`
}

// Count returns the count of window w.
func (c TagCounter) Count(w Window) float64 {
	return c.Windows[w].Count
}

// Snapshot is a deep copy of the store's state.
type Snapshot struct {
	Tags   []TagCounter `json:"tags"`
	Boosts []BoostState `json:"boosts"`
}

// SweepResult reports what a sweep collected.
type SweepResult struct {
	RemovedTags   int
	RemovedBoosts int
	ActiveTags    int
	ActiveBoosts  int
}

// Store owns tag counters and intent boosts.
type Store struct {
	cfg    Config
	tags   map[string]*TagCounter
	boosts map[string]*BoostState
}

// New creates an empty store with the given policy.
func New(cfg Config) *Store {
	return &Store{
		cfg:    cfg,
		tags:   make(map[string]*TagCounter),
		boosts: make(map[string]*BoostState),
	}
}

// Config returns the store's decay policy.
func (s *Store) Config() Config {
	return s.cfg
}

// Len returns the number of live tag counters.
func (s *Store) Len() int {
	return len(s.tags)
}

// Update folds one observation's tags into the counters. Each tag is decayed
// to now before its windows receive score × boost × contribution. Notable
// intent levels also raise the boost of every tag's sector/subsector.
func (s *Store) Update(tags []signal.TagCandidate, intent signal.IntentLevel, now time.Time) {
	boost := intent.Boost
	if math.IsNaN(boost) || math.IsInf(boost, 0) || boost < 1 {
		boost = 1
	}

	for _, tag := range tags {
		if tag.Path == "" || math.IsNaN(tag.Score) || math.IsInf(tag.Score, 0) || tag.Score <= 0 {
			continue
		}
		c, ok := s.tags[tag.Path]
		if !ok {
			c = &TagCounter{Path: tag.Path}
			for w := range c.Windows {
				c.Windows[w].LastUpdate = now
			}
			s.tags[tag.Path] = c
		}
		s.decayCounter(c, now)
		for w := range c.Windows {
			c.Windows[w].Count += tag.Score * boost * s.cfg.Contribution[w]
		}

		if boost > s.cfg.NotableBoost {
			s.raiseBoost(taxonomy.AreaOf(tag.Path), boost, now)
		}
	}
}

func (s *Store) raiseBoost(area string, boost float64, now time.Time) {
	b, ok := s.boosts[area]
	if !ok {
		s.boosts[area] = &BoostState{Area: area, Value: boost, LastUpdate: now}
		return
	}
	b.decayTo(now, s.cfg.BoostHourlyRate)
	b.Value = math.Max(b.Value, boost)
}

func (s *Store) decayCounter(c *TagCounter, now time.Time) {
	for w := range c.Windows {
		c.Windows[w].decayTo(now, s.cfg.HourlyRates[w])
	}
}

// DecayAll brings every counter and boost current to now without removing anything.
func (s *Store) DecayAll(now time.Time) {
	for _, c := range s.tags {
		s.decayCounter(c, now)
	}
	for _, b := range s.boosts {
		b.decayTo(now, s.cfg.BoostHourlyRate)
	}
}

// Sweep decays everything, then drops tags whose long window fell below
// Epsilon and boosts that fell below BoostFloor.
func (s *Store) Sweep(now time.Time) SweepResult {
	s.DecayAll(now)

	var res SweepResult
	for path, c := range s.tags {
		if c.Windows[Long].Count < s.cfg.Epsilon {
			delete(s.tags, path)
			res.RemovedTags++
		}
	}
	for area, b := range s.boosts {
		if b.Value < s.cfg.BoostFloor {
			delete(s.boosts, area)
			res.RemovedBoosts++
		}
	}
	res.ActiveTags = len(s.tags)
	res.ActiveBoosts = len(s.boosts)
	return res
}

// ShortCount returns the current short-window count of path, 0 if unknown.
func (s *Store) ShortCount(path string, now time.Time) float64 {
	c, ok := s.tags[path]
	if !ok {
		return 0
	}
	s.decayCounter(c, now)
	return c.Windows[Short].Count
}

// MaxShort returns the largest current short-window count among paths.
func (s *Store) MaxShort(paths []string, now time.Time) float64 {
	var best float64
	for _, p := range paths {
		if v := s.ShortCount(p, now); v > best {
			best = v
		}
	}
	return best
}

// ReadTop returns copies of the n strongest tags by short-window count,
// ties broken by path. n <= 0 returns all tags.
func (s *Store) ReadTop(n int, now time.Time) []TagCounter {
	all := s.All(now)
	sort.Slice(all, func(i, j int) bool {
		ci, cj := all[i].Windows[Short].Count, all[j].Windows[Short].Count
		if ci != cj {
			return ci > cj
		}
		return all[i].Path < all[j].Path
	})
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// All returns decayed copies of every counter in path order.
func (s *Store) All(now time.Time) []TagCounter {
	out := make([]TagCounter, 0, len(s.tags))
	for _, c := range s.tags {
		s.decayCounter(c, now)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Boost returns the current remembered boost for area, 1.0 if none.
func (s *Store) Boost(area string, now time.Time) float64 {
	b, ok := s.boosts[area]
	if !ok {
		return 1
	}
	b.decayTo(now, s.cfg.BoostHourlyRate)
	return b.Value
}

// Boosts returns decayed copies of every remembered boost in area order.
func (s *Store) Boosts(now time.Time) []BoostState {
	out := make([]BoostState, 0, len(s.boosts))
	for _, b := range s.boosts {
		b.decayTo(now, s.cfg.BoostHourlyRate)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Area < out[j].Area })
	return out
}

// Snapshot returns a deep copy of the raw state without decaying it.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		Tags:   make([]TagCounter, 0, len(s.tags)),
		Boosts: make([]BoostState, 0, len(s.boosts)),
	}
	for _, c := range s.tags {
		snap.Tags = append(snap.Tags, *c)
	}
	for _, b := range s.boosts {
		snap.Boosts = append(snap.Boosts, *b)
	}
	sort.Slice(snap.Tags, func(i, j int) bool { return snap.Tags[i].Path < snap.Tags[j].Path })
	sort.Slice(snap.Boosts, func(i, j int) bool { return snap.Boosts[i].Area < snap.Boosts[j].Area })
	return snap
}

// Restore replaces the store's state with snap. Negative or non-finite counts
// are zeroed; boosts below 1 are dropped.
func (s *Store) Restore(snap Snapshot) {
	s.tags = make(map[string]*TagCounter, len(snap.Tags))
	s.boosts = make(map[string]*BoostState, len(snap.Boosts))
	for _, c := range snap.Tags {
		if c.Path == "" {
			continue
		}
		c := c
		for w := range c.Windows {
			if v := c.Windows[w].Count; v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				c.Windows[w].Count = 0
			}
		}
		s.tags[c.Path] = &c
	}
	for _, b := range snap.Boosts {
		if b.Area == "" || b.Value < 1 || math.IsNaN(b.Value) {
			continue
		}
		b := b
		s.boosts[b.Area] = &b
	}
}
