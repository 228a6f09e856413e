// Package metrics exposes Prometheus metrics for the ingest daemon.
package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for candle ingest.
type Metrics struct {
	CandlesIngested *prometheus.CounterVec // labels: symbol
	FeedReconnects  prometheus.Counter
	DedupDropped    prometheus.Counter
	FileWriteDur    prometheus.Histogram
	SQLiteCommitDur prometheus.Histogram
	RedisWriteDur   prometheus.Histogram
	CandleLag       prometheus.Gauge
}

// New registers and returns all ingest metrics.
func New() *Metrics {
	m := &Metrics{
		CandlesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_candles_total",
			Help: "Total closed candles received from the feed",
		}, []string{"symbol"}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_feed_reconnects_total",
			Help: "Total WebSocket reconnection attempts",
		}),
		DedupDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_dedup_dropped_total",
			Help: "Candles dropped as duplicates of a higher-volume record",
		}),
		FileWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_file_write_duration_seconds",
			Help:    "Gzip candle file merge+write latency",
			Buckets: prometheus.DefBuckets,
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_redis_write_duration_seconds",
			Help:    "Redis latest-candle write latency",
			Buckets: prometheus.DefBuckets,
		}),
		CandleLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ingest_candle_lag_seconds",
			Help: "Lag between candle close time and ingestion",
		}),
	}

	prometheus.MustRegister(
		m.CandlesIngested,
		m.FeedReconnects,
		m.DedupDropped,
		m.FileWriteDur,
		m.SQLiteCommitDur,
		m.RedisWriteDur,
		m.CandleLag,
	)
	return m
}

// ObserveLag records ingest delay for a candle that closed at closedAt.
func (m *Metrics) ObserveLag(closedAt time.Time) {
	m.CandleLag.Set(time.Since(closedAt).Seconds())
}

// Serve starts the /metrics HTTP endpoint in a background goroutine.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
	log.Printf("[metrics] serving on %s/metrics", addr)
}
