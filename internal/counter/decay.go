package counter

import (
	"math"
	"time"
)

// Window identifies one of the three decaying accumulators of a tag.
type Window int

const (
	Short  Window = iota // d1
	Medium               // d7
	Long                 // d30

	numWindows = 3
)

var windowNames = [numWindows]string{"d1", "d7", "d30"}

// String returns the window's wire name.
func (w Window) String() string {
	if w < 0 || int(w) >= numWindows {
		return "unknown"
	}
	return windowNames[w]
}

// Config holds the decay policy. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	// HourlyRates is the per-hour retention factor of each window.
	HourlyRates [numWindows]float64
	// Contribution scales a fresh observation into each window.
	Contribution [numWindows]float64
	// Epsilon is the long-window count below which a tag is collected.
	Epsilon float64

	// NotableBoost is the intent boost a level must exceed to be remembered.
	NotableBoost float64
	// BoostHourlyRate is the per-hour retention of a remembered boost.
	BoostHourlyRate float64
	// BoostFloor is the value below which a remembered boost is dropped.
	BoostFloor float64
}

// DefaultConfig returns the reference decay policy: the short window halves in
// roughly 6.5h, the medium in ~3 days, the long in ~2 weeks.
func DefaultConfig() Config {
	return Config{
		HourlyRates:     [numWindows]float64{0.90, 0.99, 0.998},
		Contribution:    [numWindows]float64{1.0, 0.5, 0.25},
		Epsilon:         0.01,
		NotableBoost:    1.5,
		BoostHourlyRate: 0.98,
		BoostFloor:      1.1,
	}
}

// WindowState is one exponentially decaying accumulator.
type WindowState struct {
	Count      float64   `json:"count"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// decayTo brings the window current. Earlier or equal timestamps are no-ops,
// so repeated calls with the same now are idempotent.
func (w *WindowState) decayTo(now time.Time, rate float64) {
	if w.LastUpdate.IsZero() {
		w.LastUpdate = now
		return
	}
	if !now.After(w.LastUpdate) {
		return
	}
	hours := now.Sub(w.LastUpdate).Hours()
	w.Count *= math.Pow(rate, hours)
	if w.Count < 0 || math.IsNaN(w.Count) {
		w.Count = 0
	}
	w.LastUpdate = now
}

// BoostState is a remembered intent boost for a sector/subsector.
type BoostState struct {
	Area       string    `json:"area"`
	Value      float64   `json:"value"`
	LastUpdate time.Time `json:"lastUpdate"`
}

func (b *BoostState) decayTo(now time.Time, rate float64) {
	if b.LastUpdate.IsZero() {
		b.LastUpdate = now
		return
	}
	if !now.After(b.LastUpdate) {
		return
	}
	hours := now.Sub(b.LastUpdate).Hours()
	b.Value = math.Max(1, b.Value*math.Pow(rate, hours))
	b.LastUpdate = now
}
