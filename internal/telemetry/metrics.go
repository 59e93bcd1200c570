// Package telemetry provides observability primitives for streamline.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for streamline.
type Metrics struct {
	TransfersTotal      *prometheus.CounterVec
	TransferDuration    *prometheus.HistogramVec
	ActiveTransfers     prometheus.Gauge
	BytesReceived       prometheus.Counter
	LinesTotal          prometheus.Counter
	StatusErrors        *prometheus.CounterVec
	RecorderQueueLength prometheus.Gauge
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	ActiveRequests      prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransfersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamline",
			Name:      "transfers_total",
			Help:      "Total number of transfers by outcome.",
		}, []string{"outcome"}),

		TransferDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "streamline",
			Name:                            "transfer_duration_seconds",
			Help:                            "Transfer duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"outcome"}),

		ActiveTransfers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streamline",
			Name:      "active_transfers",
			Help:      "Number of transfers currently in flight.",
		}),

		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamline",
			Name:      "bytes_received_total",
			Help:      "Total response body bytes received.",
		}),

		LinesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamline",
			Name:      "lines_total",
			Help:      "Total lines delivered to line handlers.",
		}),

		StatusErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamline",
			Name:      "http_status_errors_total",
			Help:      "Total transfers rejected by a non-2xx response status.",
		}, []string{"status"}),

		RecorderQueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streamline",
			Name:      "recorder_queue_length",
			Help:      "Current number of queued transfer records.",
		}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamline",
			Name:      "requests_total",
			Help:      "Total number of API requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "streamline",
			Name:                            "request_duration_seconds",
			Help:                            "API request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streamline",
			Name:      "active_requests",
			Help:      "Number of API requests currently being served.",
		}),
	}

	reg.MustRegister(
		m.TransfersTotal,
		m.TransferDuration,
		m.ActiveTransfers,
		m.BytesReceived,
		m.LinesTotal,
		m.StatusErrors,
		m.RecorderQueueLength,
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
	)

	return m
}
