// Package metrics holds the Prometheus collectors for pulse.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pulse_observations_total
	ObservationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_observations_total",
		Help: "Total observations processed by the engine",
	})

	// pulse_intent_total{label=research_phase|cart_activity|...}
	IntentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_intent_total",
		Help: "Observations by detected intent label",
	}, []string{"label"})

	// pulse_tags_per_observation (histogram)
	TagsPerObservation = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pulse_tags_per_observation",
		Help:    "Tag candidates extracted per observation",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
	})

	// pulse_pta_score (histogram)
	PtAScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pulse_pta_score",
		Help:    "Per-observation Probability-to-Act",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
	})

	// pulse_active_tags (gauge)
	ActiveTags = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pulse_active_tags",
		Help: "Live tag counters after the last sweep",
	})

	// pulse_swept_total{kind=tag|boost}
	SweptTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_swept_total",
		Help: "Counters and boosts collected by the decay sweep",
	}, []string{"kind"})

	// pulse_exports_total{view=profile|matching}
	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_exports_total",
		Help: "Profile exports produced",
	}, []string{"view"})

	// pulse_export_denied_total{view=profile|matching}
	ExportDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_export_denied_total",
		Help: "Interests withheld from an export by policy",
	}, []string{"view"})

	// pulse_commitment_fallback_total
	CommitmentFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_commitment_fallback_total",
		Help: "Exports that used the fallback commitment digest",
	})
)

// RecordObservation records one processed observation.
func RecordObservation(intent string, tags int, pta float64) {
	ObservationsTotal.Inc()
	IntentTotal.WithLabelValues(intent).Inc()
	TagsPerObservation.Observe(float64(tags))
	PtAScore.Observe(pta)
}

// RecordSweep records a sweep result.
func RecordSweep(removedTags, removedBoosts, active int) {
	SweptTotal.WithLabelValues("tag").Add(float64(removedTags))
	SweptTotal.WithLabelValues("boost").Add(float64(removedBoosts))
	ActiveTags.Set(float64(active))
}

// RecordExport records an export for view and how many interests policy withheld.
func RecordExport(view string, denied int, fallback bool) {
	ExportsTotal.WithLabelValues(view).Inc()
	if denied > 0 {
		ExportDeniedTotal.WithLabelValues(view).Add(float64(denied))
	}
	if fallback {
		CommitmentFallbackTotal.Inc()
	}
}
