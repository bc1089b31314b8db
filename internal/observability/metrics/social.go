package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GraphMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_mutations_total",
			Help: "Total number of follow/unfollow mutations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// GraphWriteRetries counts re-drives of the second adjacency write after
	// a partial failure left the edge one-sided.
	GraphWriteRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "graph_write_retries_total",
			Help: "Total number of retried adjacency writes",
		},
	)

	FeedEntriesReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_entries_returned",
			Help:    "Number of entries returned per feed query",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
	)
)
