// Package metrics provides Prometheus metrics for diskly scans.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scan outcomes used as the outcome label.
const (
	OutcomeComplete  = "complete"
	OutcomeCached    = "cached"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	scansTotal      *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheEvictions  prometheus.Counter
	itemsScanned    prometheus.Counter
	droppedNotifies prometheus.Counter
	scanDuration    prometheus.Histogram
	activeScans     prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		scansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diskly_scans_total",
				Help: "Scan attempts by outcome",
			},
			[]string{"outcome"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diskly_cache_lookups_total",
				Help: "Scan cache lookups by result",
			},
			[]string{"result"},
		),
		cacheEvictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "diskly_cache_evictions_total",
				Help: "Completed scans evicted from the cache",
			},
		),
		itemsScanned: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "diskly_items_scanned_total",
				Help: "Filesystem entries visited by completed scans",
			},
		),
		droppedNotifies: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "diskly_dropped_notifications_total",
				Help: "Progress and entry error notifications dropped on a full queue",
			},
		),
		scanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "diskly_scan_duration_seconds",
				Help:    "Wall time of engine scans",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),
		activeScans: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "diskly_active_scans",
				Help: "Engine scans currently running",
			},
		),
	}
}

// ScanStarted records an engine scan starting.
func (m *Metrics) ScanStarted() {
	if m == nil {
		return
	}
	m.activeScans.Inc()
}

// ScanFinished records an engine scan ending with outcome.
func (m *Metrics) ScanFinished(outcome string, d time.Duration, items uint64) {
	if m == nil {
		return
	}
	m.activeScans.Dec()
	m.scansTotal.WithLabelValues(outcome).Inc()
	m.scanDuration.Observe(d.Seconds())
	if outcome == OutcomeComplete {
		m.itemsScanned.Add(float64(items))
	}
}

// ScanSkipped records an attempt that never reached the engine.
func (m *Metrics) ScanSkipped(outcome string) {
	if m == nil {
		return
	}
	m.scansTotal.WithLabelValues(outcome).Inc()
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// CacheEvicted records one eviction.
func (m *Metrics) CacheEvicted() {
	if m == nil {
		return
	}
	m.cacheEvictions.Inc()
}

// NotificationDropped records one dropped notification.
func (m *Metrics) NotificationDropped() {
	if m == nil {
		return
	}
	m.droppedNotifies.Inc()
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
