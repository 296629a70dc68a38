package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobTransitionsTotal, dispatchGapSeconds) }

var jobTransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "analysis_job_transitions_total",
		Help: "Job state transitions, labeled by resulting state.",
	},
	[]string{"state"}, // 'queued', 'running', 'retry_scheduled', 'succeeded', 'failed'
)

var dispatchGapSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "analysis_dispatch_gap_seconds",
		Help:    "Gap between the end of one dispatch and the start of the next.",
		Buckets: []float64{1, 5, 10, 15, 20, 30, 60, 120},
	},
)

func IncJobTransition(state string) {
	jobTransitionsTotal.WithLabelValues(state).Inc()
}

func ObserveDispatchGap(seconds float64) {
	dispatchGapSeconds.Observe(seconds)
}
