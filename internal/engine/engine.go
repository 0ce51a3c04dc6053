// Package engine turns a stream of observations into a decaying interest
// profile and produces privacy-shaped exports of it.
//
// All mutable state (tag counters, intent boosts, session records) sits
// behind a single mutex. Writers and the periodic sweep share it; readers
// decay to now and copy out while holding it. Commitments, metrics and
// persistence run after the lock is released.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lazypower/pulse/internal/commit"
	"github.com/lazypower/pulse/internal/counter"
	"github.com/lazypower/pulse/internal/metrics"
	"github.com/lazypower/pulse/internal/policy"
	"github.com/lazypower/pulse/internal/session"
	"github.com/lazypower/pulse/internal/signal"
	"github.com/lazypower/pulse/internal/taxonomy"
)

const (
	// DefaultTopN is the number of tags in a profile export.
	DefaultTopN = 10
	// MatchTopN is the number of interests in a matching export.
	MatchTopN = 5
	// ExportBoostThreshold is the minimum boost included in exports.
	ExportBoostThreshold = 1.5
	// DefaultAuditRetention is how long observation log and export rows are kept.
	DefaultAuditRetention = 30 * 24 * time.Hour

	viewDebug = "debug"
)

// Persister stores engine state and audit records. *store.DB implements it.
type Persister interface {
	SaveSnapshot(snap counter.Snapshot, sessions []session.Entry) error
	LoadSnapshot() (counter.Snapshot, []session.Entry, error)
	LogObservation(sessionID, host, intent string, tags int, pta float64, at time.Time) error
	RecordExport(view, commitment string, pta float64, interests int, geoBucket string, at time.Time) error
	PruneAudit(cutoff time.Time) (int64, error)
}

// Options configures an Engine. Zero values select defaults.
type Options struct {
	Taxonomy        *taxonomy.Taxonomy
	Counter         *counter.Config
	SessionCapacity int
	TopN            int
	GeoBucket       string
	Scheme          commit.Scheme
	Gate            *policy.Gate
	Persister       Persister
	AuditRetention  time.Duration
	Logger          *slog.Logger
	Clock           func() time.Time
}

// Engine orchestrates extraction, intent detection, decay, scoring and export.
type Engine struct {
	tax       *taxonomy.Taxonomy
	scheme    commit.Scheme
	gate      *policy.Gate
	persister Persister
	retention time.Duration
	logger    *slog.Logger
	clock     func() time.Time
	topN      int

	mu       sync.Mutex
	counters *counter.Store
	sessions *session.Aggregator
	geo      string

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		tax:       opts.Taxonomy,
		scheme:    opts.Scheme,
		gate:      opts.Gate,
		persister: opts.Persister,
		retention: opts.AuditRetention,
		logger:    opts.Logger,
		clock:     opts.Clock,
		topN:      opts.TopN,
		geo:       opts.GeoBucket,
		sessions:  session.NewAggregator(opts.SessionCapacity),
		stopCh:    make(chan struct{}),
	}
	if e.tax == nil {
		e.tax = taxonomy.Empty()
	}
	if e.scheme == nil {
		e.scheme = commit.NewSponge()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "engine")
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.topN <= 0 {
		e.topN = DefaultTopN
	}
	if e.retention <= 0 {
		e.retention = DefaultAuditRetention
	}
	cfg := counter.DefaultConfig()
	if opts.Counter != nil {
		cfg = *opts.Counter
	}
	e.counters = counter.New(cfg)
	return e
}

// Taxonomy returns the engine's taxonomy.
func (e *Engine) Taxonomy() *taxonomy.Taxonomy {
	return e.tax
}

// Restore loads persisted state, replacing whatever the engine holds.
func (e *Engine) Restore() error {
	if e.persister == nil {
		return nil
	}
	snap, entries, err := e.persister.LoadSnapshot()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	e.mu.Lock()
	e.counters.Restore(snap)
	e.sessions.Restore(entries)
	tags, sessions := e.counters.Len(), e.sessions.Len()
	e.mu.Unlock()

	e.logger.Info("state restored", "tags", tags, "sessions", sessions)
	return nil
}

// ProcessObservation scores one observation, folds it into the profile and
// returns a fresh export. It never fails; bad input degrades to weaker signal.
func (e *Engine) ProcessObservation(obs Observation) ExportedProfile {
	now := e.clock()
	obs, fixed := sanitize(obs, now)
	for _, f := range fixed {
		e.logger.Debug("observation sanitized", "session", obs.SessionID, "fix", f)
	}
	observedAt := time.UnixMilli(obs.Timestamp)

	tags := signal.ExtractTags(e.tax, obs.URL, obs.Title, obs.Content, obs.Meta)
	intent := signal.DetectIntent(e.tax.Intents(), obs.URL, obs.DOMSignals, obs.Content)
	behavioral := signal.BehavioralScore(obs.TimeOnPage, obs.ScrollDepth, obs.InteractionCount, observedAt, now)

	paths := make([]string, len(tags))
	for i, t := range tags {
		paths[i] = t.Path
	}

	e.mu.Lock()
	e.counters.Update(tags, intent, now)
	pta := signal.PtA(e.counters.MaxShort(paths, now), behavioral, intent.Boost)
	e.sessions.Record(obs.SessionID, session.Record{
		Tags:            paths,
		IntentLevel:     intent,
		BehavioralScore: behavioral,
		PtA:             pta,
		Timestamp:       observedAt,
	})
	if obs.GeoBucket != "" {
		e.geo = obs.GeoBucket
	}
	profile, denied := e.profileLocked(now)
	e.mu.Unlock()

	e.finishProfile(&profile, denied, now)

	metrics.RecordObservation(intent.Type, len(tags), pta)
	e.logger.Debug("observation processed",
		"session", obs.SessionID, "tags", len(tags), "intent", intent.Type, "pta", pta)
	if e.persister != nil {
		if err := e.persister.LogObservation(obs.SessionID, signal.Hostname(obs.URL), intent.Type, len(tags), pta, now); err != nil {
			e.logger.Warn("log observation failed", "err", err)
		}
	}
	return profile
}

// ExportProfile returns the current privacy-shaped profile.
func (e *Engine) ExportProfile() ExportedProfile {
	now := e.clock()
	e.mu.Lock()
	profile, denied := e.profileLocked(now)
	e.mu.Unlock()

	e.finishProfile(&profile, denied, now)
	return profile
}

// profileLocked builds an uncommitted export. Caller holds e.mu.
func (e *Engine) profileLocked(now time.Time) (ExportedProfile, int) {
	p := ExportedProfile{
		TagCounts:    make(map[string]float64),
		IntentBoosts: make(map[string]float64),
		PtAScore:     e.sessions.OverallPtA(now),
		GeoBucket:    e.geo,
		Timestamp:    now.UnixMilli(),
	}

	denied := 0
	for _, c := range e.counters.ReadTop(0, now) {
		if len(p.TagCounts) >= e.topN {
			break
		}
		count := signal.Round2(c.Count(counter.Short))
		req := policy.Request{
			Path:      c.Path,
			Consumer:  policy.ConsumerProfile,
			Score:     count,
			HasIntent: e.counters.Boost(taxonomy.AreaOf(c.Path), now) >= ExportBoostThreshold,
		}
		if !e.gate.Allow(req) {
			denied++
			continue
		}
		p.TagCounts[c.Path] = count
	}

	for _, b := range e.counters.Boosts(now) {
		if b.Value < ExportBoostThreshold {
			continue
		}
		req := policy.Request{Path: b.Area, Consumer: policy.ConsumerProfile, Score: b.Value, HasIntent: true}
		if !e.gate.Allow(req) {
			denied++
			continue
		}
		p.IntentBoosts[b.Area] = signal.Round2(b.Value)
	}
	return p, denied
}

func (e *Engine) finishProfile(p *ExportedProfile, denied int, now time.Time) {
	digest, err := commit.Generate(e.scheme, p, now)
	if err != nil {
		e.logger.Warn("commitment fallback", "err", err)
	}
	p.Commitment = digest

	metrics.RecordExport(policy.ConsumerProfile, denied, err != nil)
	if e.persister != nil {
		if err := e.persister.RecordExport(policy.ConsumerProfile, digest, p.PtAScore, len(p.TagCounts), p.GeoBucket, now); err != nil {
			e.logger.Warn("record export failed", "err", err)
		}
	}
}

// ExportForMatching returns the top sector/subsector interests.
func (e *Engine) ExportForMatching() MatchingExport {
	now := e.clock()

	e.mu.Lock()
	ranked := rankAreas(e.counters.All(now), taxonomy.AreaOf)
	out := MatchingExport{
		Interests: make([]Interest, 0, MatchTopN),
		PtAScore:  e.sessions.OverallPtA(now),
		GeoBucket: e.geo,
		Timestamp: now.UnixMilli(),
	}
	denied := 0
	for _, in := range ranked {
		if len(out.Interests) >= MatchTopN {
			break
		}
		in.Score = signal.Round2(in.Score)
		in.HasIntent = e.counters.Boost(in.Sector, now) >= ExportBoostThreshold
		req := policy.Request{Path: in.Sector, Consumer: policy.ConsumerMatching, Score: in.Score, HasIntent: in.HasIntent}
		if !e.gate.Allow(req) {
			denied++
			continue
		}
		out.Interests = append(out.Interests, in)
	}
	e.mu.Unlock()

	digest, err := commit.Generate(e.scheme, out, now)
	if err != nil {
		e.logger.Warn("commitment fallback", "err", err)
	}
	out.Commitment = digest

	metrics.RecordExport(policy.ConsumerMatching, denied, err != nil)
	if e.persister != nil {
		if err := e.persister.RecordExport(policy.ConsumerMatching, digest, out.PtAScore, len(out.Interests), out.GeoBucket, now); err != nil {
			e.logger.Warn("record export failed", "err", err)
		}
	}
	return out
}

// CurrentProfile returns the raw debug view. It is not privacy-shaped.
func (e *Engine) CurrentProfile() DebugProfile {
	now := e.clock()

	e.mu.Lock()
	defer e.mu.Unlock()
	p := DebugProfile{
		View:           viewDebug,
		Timestamp:      now.UnixMilli(),
		Tags:           e.counters.All(now),
		Boosts:         e.counters.Boosts(now),
		Sessions:       e.sessions.Entries(),
		OverallPtA:     e.sessions.OverallPtA(now),
		GeoBucket:      e.geo,
		TaxonomySource: e.tax.Source(),
		TaxonomyLeaves: e.tax.Len(),
		PolicyVersion:  e.gate.Version(),
	}
	for _, c := range p.Tags {
		if e.tax.Lookup(c.Path) == nil {
			p.StaleTags = append(p.StaleTags, c.Path)
		}
	}
	return p
}

// TopTags returns the n strongest tags by short-window count. n <= 0 uses
// the export size.
func (e *Engine) TopTags(n int) []TagView {
	if n <= 0 {
		n = e.topN
	}
	now := e.clock()

	e.mu.Lock()
	top := e.counters.ReadTop(n, now)
	e.mu.Unlock()

	out := make([]TagView, len(top))
	for i, c := range top {
		out[i] = tagView(c)
	}
	return out
}
