// Package metrics exposes Prometheus instruments for the manifest pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lessonforge_manifest_validations_total",
		Help: "Manifest validations by mode and outcome",
	}, []string{"mode", "outcome"}) // mode=full|partial outcome=valid|invalid

	validationIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lessonforge_manifest_validation_issues_total",
		Help: "Blocking validation errors by category",
	}, []string{"category"})

	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lessonforge_timing_analyses_total",
		Help: "Timing analyses by outcome",
	}, []string{"outcome"}) // outcome=success|invalid_narration|error

	analyzedVideoSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lessonforge_analyzed_video_seconds",
		Help:    "Total duration of analyzed videos",
		Buckets: []float64{15, 30, 60, 120, 180, 300, 600},
	})

	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lessonforge_generations_total",
		Help: "Generation jobs by terminal status",
	}, []string{"status"}) // status=succeeded|failed|cancelled

	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lessonforge_generation_duration_seconds",
		Help:    "Wall time from job start to completion",
		Buckets: prometheus.ExponentialBuckets(5, 2, 10),
	})

	rateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lessonforge_rate_limited_total",
		Help: "Requests rejected by the per-user rate limiter",
	}, []string{"scope"})
)

// RecordValidation counts one validation run and its blocking issues.
func RecordValidation(partial, valid bool, categories []string) {
	mode := "full"
	if partial {
		mode = "partial"
	}
	outcome := "valid"
	if !valid {
		outcome = "invalid"
	}
	validationsTotal.WithLabelValues(mode, outcome).Inc()
	for _, c := range categories {
		validationIssuesTotal.WithLabelValues(c).Inc()
	}
}

func RecordAnalysis(outcome string, totalSeconds float64) {
	analysesTotal.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		analyzedVideoSeconds.Observe(totalSeconds)
	}
}

func RecordGeneration(status string, seconds float64) {
	generationsTotal.WithLabelValues(status).Inc()
	if seconds > 0 {
		generationDuration.Observe(seconds)
	}
}

func RecordRateLimited(scope string) {
	rateLimitedTotal.WithLabelValues(scope).Inc()
}
