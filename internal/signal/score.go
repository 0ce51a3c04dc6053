package signal

import (
	"math"
	"time"
)

// Behavioral normalization caps and weights (weights sum to 1).
const (
	maxTimeOnPage   = 300.0 // seconds
	maxScrollDepth  = 100.0 // percent
	maxInteractions = 20.0

	timeWeight        = 0.4
	scrollWeight      = 0.3
	interactionWeight = 0.3

	// recencyScaleHours is the e-folding time of the recency factor.
	recencyScaleHours = 24.0
)

// PtA logistic coefficients.
const (
	ptaTagCoef      = 0.8
	ptaBehaviorCoef = 0.5
	ptaBoostCoef    = 0.3
)

// BehavioralScore folds dwell time, scroll depth and interactions into [0,1],
// discounted by how long ago the observation happened.
func BehavioralScore(timeOnPage, scrollDepth float64, interactions int, observedAt, now time.Time) float64 {
	t := normalize(timeOnPage, maxTimeOnPage)
	s := normalize(scrollDepth, maxScrollDepth)
	i := normalize(float64(interactions), maxInteractions)

	return clamp01((timeWeight*t + scrollWeight*s + interactionWeight*i) * RecencyFactor(observedAt, now))
}

// RecencyFactor is exp(-hoursAgo/24), 1 for zero or future timestamps.
func RecencyFactor(observedAt, now time.Time) float64 {
	if observedAt.IsZero() || now.IsZero() {
		return 1
	}
	hours := now.Sub(observedAt).Hours()
	if hours <= 0 {
		return 1
	}
	return math.Exp(-hours / recencyScaleHours)
}

// PtA estimates Probability-to-Act from the strongest short-window tag
// counter, the behavioral score and the intent boost. Invalid inputs fall back
// to neutral values; the result is always in [0,1], rounded to two decimals.
func PtA(tagSignal, behavioralScore, intentBoost float64) float64 {
	if !finite(tagSignal) || tagSignal < 0 {
		tagSignal = 0
	}
	if !finite(behavioralScore) {
		behavioralScore = 0
	}
	behavioralScore = clamp01(behavioralScore)
	if !finite(intentBoost) || intentBoost < 1 {
		intentBoost = 1
	}

	z := ptaTagCoef*math.Log(math.Max(tagSignal, 1)) +
		ptaBehaviorCoef*behavioralScore +
		ptaBoostCoef*math.Log(intentBoost)

	return Round2(clamp01(1 / (1 + math.Exp(-z))))
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func normalize(v, limit float64) float64 {
	if !finite(v) || v <= 0 {
		return 0
	}
	return math.Min(v, limit) / limit
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
