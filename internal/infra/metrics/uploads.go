package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(uploadsTotal, uploadBytes) }

var uploadsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "video_uploads_total",
		Help: "Ingested uploads, labeled by outcome.",
	},
	[]string{"outcome"}, // 'accepted', 'rejected_media', 'rejected_session', 'rate_limited', 'error'
)

var uploadBytes = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "video_upload_bytes",
		Help:    "Size of accepted clip uploads in bytes.",
		Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8),
	},
)

func IncUpload(outcome string) {
	uploadsTotal.WithLabelValues(outcome).Inc()
}

func ObserveUploadSize(bytes int) {
	uploadBytes.Observe(float64(bytes))
}
