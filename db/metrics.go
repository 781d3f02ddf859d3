package db

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopql_queries_total",
			Help: "Total number of executed queries by statement kind and status",
		},
		[]string{"kind", "status"},
	)

	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopql_query_duration_seconds",
			Help:    "Query execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopql_fetch_duration_seconds",
			Help:    "Record store fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	rowsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shopql_rows_returned",
			Help:    "Number of rows produced per successful query",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
		},
	)
)

const statusOK = "ok"

func observeQuery(kind, status string, secs float64, rows int) {
	queriesTotal.WithLabelValues(kind, status).Inc()
	queryDuration.WithLabelValues(kind).Observe(secs)
	if status == statusOK {
		rowsReturned.Observe(float64(rows))
	}
}
