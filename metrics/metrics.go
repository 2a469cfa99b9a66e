// Package metrics exposes Prometheus instrumentation of the conversion pipeline
// and the HTTP server publishing it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tdf_pipeline"

// Batch results.
const (
	BatchCompleted = "completed"
	BatchAborted   = "aborted"
)

var (
	itemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Total number of items routed, by direction, container format and route.",
		},
		[]string{"direction", "format", "route"},
	)

	batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of batches processed, by result.",
		},
		[]string{"direction", "format", "result"},
	)

	batchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time spent converting one batch.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"direction", "format"},
	)

	clientBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_builds_total",
			Help:      "Total number of SDK client builds, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(itemsTotal, batchesTotal, batchDuration, clientBuildsTotal)
}

// ObserveItem counts one routed item.
func ObserveItem(direction, format, route string) {
	itemsTotal.WithLabelValues(direction, format, route).Inc()
}

// ObserveBatch counts one batch and records its duration.
func ObserveBatch(direction, format, result string, took time.Duration) {
	batchesTotal.WithLabelValues(direction, format, result).Inc()
	batchDuration.WithLabelValues(direction, format).Observe(took.Seconds())
}

// ObserveClientBuild counts one SDK client build attempt.
func ObserveClientBuild(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	clientBuildsTotal.WithLabelValues(result).Inc()
}
