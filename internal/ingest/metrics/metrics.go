package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal tracks finished poll cycles by outcome (success, failed)
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgesync_cycles_total",
			Help: "Total number of poll cycles",
		},
		[]string{"outcome"},
	)

	// RetriesTotal tracks in-cycle retries
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edgesync_retries_total",
			Help: "Total number of in-cycle retries",
		},
	)

	// FeedRequestsTotal tracks feed requests by result (2xx, 4xx, 5xx, network, decode)
	FeedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgesync_feed_requests_total",
			Help: "Total number of advantages feed requests",
		},
		[]string{"result"},
	)

	// FeedLatency tracks feed request latency
	FeedLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "edgesync_feed_latency_seconds",
			Help:    "Advantages feed request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RecordsRejected tracks advantages dropped by the transformer
	RecordsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edgesync_records_rejected_total",
			Help: "Total number of malformed advantages",
		},
	)

	// EdgesUpserted tracks upserted edges by result (inserted, replaced, failed)
	EdgesUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgesync_edges_upserted_total",
			Help: "Total number of edge upserts",
		},
		[]string{"result"},
	)

	// LastSuccess is the unix time of the last fully successful cycle
	LastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "edgesync_last_success_timestamp_seconds",
			Help: "Unix time of the last successful poll cycle",
		},
	)

	// DBConnectionPoolUsage tracks open connections as a percentage of the pool limit
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "edgesync_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
