package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecognitionAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "recognition_attempts_total",
		Help:      "Total number of recognition attempts by operation and outcome",
	}, []string{"operation", "status"})

	ExtractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "facegate",
		Name:      "extraction_duration_seconds",
		Help:      "Duration of external embedding extraction calls",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	ExtractionsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facegate",
		Name:      "extractions_in_flight",
		Help:      "Number of currently running extraction processes",
	})

	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "auth_failures_total",
		Help:      "Total number of rejected requests by failure cause",
	}, []string{"cause"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facegate",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
