package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StorageOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_op_duration_seconds",
			Help:    "Duration of object storage operations in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	StorageOpErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_op_errors_total",
			Help: "Total number of object storage operation failures",
		},
		[]string{"operation"},
	)

	// StorageOrphanCleanups counts best-effort deletions of objects uploaded
	// for a post create that subsequently failed.
	StorageOrphanCleanups = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storage_orphan_cleanups_total",
			Help: "Total number of orphaned uploads cleaned up after a failed create",
		},
	)
)
