// Package metrics exposes Prometheus instrumentation for the selection
// pipeline and the model runtime.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DecisionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelgate_decisions_total",
			Help: "Total routing decisions by selected model and decision source",
		},
		[]string{"model", "source"},
	)

	DecisionConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modelgate_decision_confidence",
			Help:    "Confidence of routing decisions",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	EscalationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelgate_escalations_total",
			Help: "Total meta-router escalations by outcome",
		},
		[]string{"outcome"},
	)

	EscalationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "modelgate_escalation_duration_seconds",
			Help: "Wall time of meta-router escalations",
		},
	)

	ModelLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelgate_model_loads_total",
			Help: "Total successful model loads",
		},
		[]string{"model"},
	)

	ModelSwitches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modelgate_model_switches_total",
			Help: "Total active-model switches",
		},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modelgate_decision_cache_hits_total",
			Help: "Total decision cache hits",
		},
	)
)

// ObserveDecision records one routing decision.
func ObserveDecision(model, source string, confidence float64) {
	DecisionCount.WithLabelValues(model, source).Inc()
	DecisionConfidence.Observe(confidence)
}

// ObserveEscalation records one meta-router escalation attempt.
func ObserveEscalation(outcome string, elapsed time.Duration) {
	EscalationCount.WithLabelValues(outcome).Inc()
	EscalationDuration.Observe(elapsed.Seconds())
}

// ObserveModelLoad records one successful model load.
func ObserveModelLoad(model string) {
	ModelLoads.WithLabelValues(model).Inc()
}

// ObserveModelSwitch records one active-model switch.
func ObserveModelSwitch() {
	ModelSwitches.Inc()
}

// ObserveCacheHit records one decision served from cache.
func ObserveCacheHit() {
	CacheHits.Inc()
}
