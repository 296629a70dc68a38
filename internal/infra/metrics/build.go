package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(buildInfo) }

// Version is stamped via -ldflags at build time.
var Version = "dev"

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "interview_recorder_build_info",
		Help: "Build metadata; value is always 1.",
	},
	[]string{"version"},
)

func SetBuildInfo() {
	buildInfo.WithLabelValues(Version).Set(1)
}
