// Package metrics exposes Prometheus counters for the scanner and the
// alert dispatcher.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the signal engine.
type Metrics struct {
	SignalsTotal    *prometheus.CounterVec // labels: signal_type
	AlertsSent      *prometheus.CounterVec // labels: channel
	AlertsDropped   *prometheus.CounterVec // labels: reason
	PatternsTotal   *prometheus.CounterVec // labels: pattern
	ScanDuration    prometheus.Histogram
	SymbolsScanned  prometheus.Counter
	WSClientsActive prometheus.Gauge

	registry *prometheus.Registry
}

// New registers and returns all metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signals_generated_total",
			Help: "Trading signals generated, by signal type",
		}, []string{"signal_type"}),
		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alerts_sent_total",
			Help: "Alert deliveries attempted and accepted, by channel",
		}, []string{"channel"}),
		AlertsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alerts_dropped_total",
			Help: "Alerts rejected by a gate, by reason",
		}, []string{"reason"}),
		PatternsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "patterns_detected_total",
			Help: "Chart and candlestick patterns detected, by kind",
		}, []string{"pattern"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scan_cycle_duration_seconds",
			Help:    "Wall time of one full universe scan",
			Buckets: prometheus.DefBuckets,
		}),
		SymbolsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symbols_scanned_total",
			Help: "Symbols evaluated across all scan cycles",
		}),
		WSClientsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ws_clients_active",
			Help: "Currently connected WebSocket clients",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.SignalsTotal,
		m.AlertsSent,
		m.AlertsDropped,
		m.PatternsTotal,
		m.ScanDuration,
		m.SymbolsScanned,
		m.WSClientsActive,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
