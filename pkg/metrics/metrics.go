package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AssetCacheLookups counts asset cache lookups by outcome (hit|miss|bypass).
	AssetCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kisansathi_asset_cache_lookups_total",
			Help: "Total number of asset cache lookups",
		},
		[]string{"outcome"},
	)

	// OfflineFallbacks counts requests answered by the offline fallback page or a synthetic 503.
	OfflineFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kisansathi_offline_fallbacks_total",
			Help: "Total number of offline fallback responses",
		},
		[]string{"kind"},
	)

	// SyncAttempts records pending-record sync attempts by category and result (success|failure).
	SyncAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kisansathi_sync_attempts_total",
			Help: "Total number of pending record sync attempts",
		},
		[]string{"category", "result"},
	)

	// ResponseCacheLookups counts durable response-cache reads by outcome (hit|miss|expired).
	ResponseCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kisansathi_response_cache_lookups_total",
			Help: "Total number of response cache lookups",
		},
		[]string{"outcome"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kisansathi_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
