// Package metrics exposes the pipeline's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP holds HTTP-surface metrics, the same shape the teacher's gateway
// exports.
type HTTP struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// Purchase holds metrics specific to the dispatch pipeline.
type Purchase struct {
	PurchasesTotal     *prometheus.CounterVec
	StrategyAttempts   *prometheus.CounterVec
	StrategyWaitSecs   *prometheus.HistogramVec
	ReservationRollbck prometheus.Counter
	QueueDepth         prometheus.Gauge
}

// NewHTTP builds the HTTP metrics for a service name.
func NewHTTP(serviceName string) *HTTP {
	return &HTTP{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    serviceName + "_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// NewPurchase builds the purchase-pipeline business metrics.
func NewPurchase(serviceName string) *Purchase {
	return &Purchase{
		PurchasesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_purchases_total",
				Help: "Total purchase requests by strategy and outcome",
			},
			[]string{"mode", "outcome"},
		),
		StrategyAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_strategy_attempts_total",
				Help: "Total failed strategy attempts by mode and reason kind",
			},
			[]string{"mode", "reason_kind"},
		),
		StrategyWaitSecs: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    serviceName + "_strategy_wait_seconds",
				Help:    "Total wait duration of one purchase's strategy run",
				Buckets: []float64{0.1, 0.5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"mode"},
		),
		ReservationRollbck: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_reservation_rollbacks_total",
				Help: "Total reservations released after a side-effect strategy failed",
			},
		),
		QueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: serviceName + "_queue_depth",
				Help: "Current depth of the in-process purchase queue",
			},
		),
	}
}

// RecordHTTPRequest records one HTTP request/response pair.
func (m *HTTP) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
