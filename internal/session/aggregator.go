// Package session keeps the rolling window of recent per-session scores used
// to compute the overall Probability-to-Act.
package session

import (
	"sort"
	"time"

	"github.com/lazypower/pulse/internal/signal"
)

const (
	// DefaultCapacity is the number of sessions retained.
	DefaultCapacity = 100
	// Window bounds how old a session may be to count toward OverallPtA.
	Window = 24 * time.Hour
	// MaxAveraged is the number of most recent sessions averaged.
	MaxAveraged = 10
)

// Record is the scored result of one observation.
type Record struct {
	Tags            []string           `json:"tags"`
	IntentLevel     signal.IntentLevel `json:"intentLevel"`
	BehavioralScore float64            `json:"behavioralScore"`
	PtA             float64            `json:"ptaScore"`
	Timestamp       time.Time          `json:"timestamp"`
}

// Entry pairs a record with its session ID.
type Entry struct {
	SessionID string `json:"sessionId"`
	Record
}

// Aggregator is a capacity-bounded map of session ID to latest record.
// Not safe for concurrent use.
type Aggregator struct {
	capacity int
	records  map[string]Record
}

// NewAggregator creates an aggregator. capacity <= 0 uses DefaultCapacity.
func NewAggregator(capacity int) *Aggregator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Aggregator{
		capacity: capacity,
		records:  make(map[string]Record, capacity),
	}
}

// Len returns the number of retained sessions.
func (a *Aggregator) Len() int {
	return len(a.records)
}

// Record stores rec under id, replacing any previous record for that session,
// then evicts the oldest sessions beyond capacity.
func (a *Aggregator) Record(id string, rec Record) {
	rec.Tags = append([]string(nil), rec.Tags...)
	a.records[id] = rec
	a.evict()
}

func (a *Aggregator) evict() {
	for len(a.records) > a.capacity {
		var oldestID string
		var oldest time.Time
		first := true
		for id, r := range a.records {
			if first || r.Timestamp.Before(oldest) || (r.Timestamp.Equal(oldest) && id < oldestID) {
				oldestID, oldest, first = id, r.Timestamp, false
			}
		}
		delete(a.records, oldestID)
	}
}

// OverallPtA averages the PtA of the most recent MaxAveraged sessions seen
// within Window of now, rounded to two decimals. 0 if none qualify.
func (a *Aggregator) OverallPtA(now time.Time) float64 {
	cutoff := now.Add(-Window)
	recent := make([]Record, 0, len(a.records))
	for _, r := range a.records {
		if r.Timestamp.After(cutoff) {
			recent = append(recent, r)
		}
	}
	if len(recent) == 0 {
		return 0
	}
	sort.Slice(recent, func(i, j int) bool { return recent[i].Timestamp.After(recent[j].Timestamp) })
	if len(recent) > MaxAveraged {
		recent = recent[:MaxAveraged]
	}

	var sum float64
	for _, r := range recent {
		sum += r.PtA
	}
	return signal.Round2(sum / float64(len(recent)))
}

// Entries returns every retained session, newest first.
func (a *Aggregator) Entries() []Entry {
	out := make([]Entry, 0, len(a.records))
	for id, r := range a.records {
		r.Tags = append([]string(nil), r.Tags...)
		out = append(out, Entry{SessionID: id, Record: r})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out
}

// Restore replaces the aggregator's contents, keeping at most capacity of the
// newest entries.
func (a *Aggregator) Restore(entries []Entry) {
	a.records = make(map[string]Record, a.capacity)
	for _, e := range entries {
		if e.SessionID == "" {
			continue
		}
		a.Record(e.SessionID, e.Record)
	}
}
