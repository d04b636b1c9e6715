package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "entropyctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "entropyctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	seedAcquisitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "entropyctl",
			Subsystem: "seed",
			Name:      "acquisitions_total",
			Help:      "Seed acquisition attempts by source and outcome.",
		},
		[]string{"source", "outcome"},
	)
	seedDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "entropyctl",
			Subsystem: "seed",
			Name:      "acquisition_duration_seconds",
			Help:      "Seed acquisition duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source", "outcome"},
	)
	seedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "entropyctl",
			Subsystem: "seed",
			Name:      "bytes_total",
			Help:      "Seed bytes delivered by source.",
		},
		[]string{"source"},
	)
	seedSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "entropyctl",
			Subsystem: "seed",
			Name:      "skipped_total",
			Help:      "Requests not attempted because the source was not worth trying.",
		},
		[]string{"source"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, seedAcquisitions, seedDuration, seedBytes, seedSkipped)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordSeedAcquisition(source string, length int, duration time.Duration, err error) {
	RegisterMetrics()
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	seedAcquisitions.WithLabelValues(source, outcome).Inc()
	seedDuration.WithLabelValues(source, outcome).Observe(duration.Seconds())
	if err == nil {
		seedBytes.WithLabelValues(source).Add(float64(length))
	}
}

func RecordSeedSkipped(source string) {
	RegisterMetrics()
	seedSkipped.WithLabelValues(source).Inc()
}
