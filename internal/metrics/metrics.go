package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Loader metrics
	IngestFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visiontag_ingest_files_total",
			Help: "Files seen by the loader, by outcome",
		},
		[]string{"status"}, // loaded | failed | malformed
	)

	IngestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visiontag_ingest_runs_total",
			Help: "Loader runs, by outcome",
		},
		[]string{"status"},
	)

	CollectionDocuments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "visiontag_collection_documents",
		Help: "Documents in the tagged collection after the last load",
	})

	// Query metrics
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "visiontag_query_duration_seconds",
			Help:    "Aggregation query latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	QueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visiontag_query_errors_total",
			Help: "Failed aggregation queries",
		},
		[]string{"query"},
	)
)
