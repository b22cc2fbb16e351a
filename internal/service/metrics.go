package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	collectorQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardnews",
		Name:      "collector_queries_total",
		Help:      "News queries by kind and result (cache, fetched, error).",
	}, []string{"kind", "result"})

	stageFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardnews",
		Name:      "stage_fallbacks_total",
		Help:      "Pipeline stages that took their fallback path, by stage and cause.",
	}, []string{"stage", "cause"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardnews",
		Name:      "runs_total",
		Help:      "Completed pipeline runs by kind and outcome (ok, degraded).",
	}, []string{"kind", "outcome"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cardnews",
		Name:      "run_duration_seconds",
		Help:      "Wall time of pipeline runs.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"kind"})
)

func recordFallback(stage string, cause Cause) {
	stageFallbacks.WithLabelValues(stage, string(cause)).Inc()
}
