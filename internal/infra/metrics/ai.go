package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(analysisLatency, analysisFailures) }

var analysisLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ai_analysis_duration_seconds",
		Help:    "Latency of external inference calls.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	},
	[]string{"outcome"}, // 'ok', 'error'
)

var analysisFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ai_analysis_failures_total",
		Help: "External inference failures, labeled by failure class.",
	},
	[]string{"class"},
)

func ObserveAnalysis(d time.Duration, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	analysisLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

func IncAnalysisFailure(class string) {
	analysisFailures.WithLabelValues(class).Inc()
}
