// Package metrics records per-run counters for the tap. A tap is a short
// lived batch process, so metrics are written to a node_exporter textfile at
// exit instead of being scraped.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tap_fred"

// Metrics is nil-safe: every recording method is a no-op on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    prometheus.Histogram
	messagesEmitted *prometheus.CounterVec
	syncSuccess     prometheus.Gauge
	lastSyncTime    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Requests issued to the FRED API, by response status.",
		}, []string{"status"}),
		httpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of requests to the FRED API.",
			Buckets:   prometheus.DefBuckets,
		}),
		messagesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_emitted_total",
			Help:      "Singer messages written to the output, by message type.",
		}, []string{"type"}),
		syncSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_success",
			Help:      "1 if the last sync completed, 0 otherwise.",
		}),
		lastSyncTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_last_run_timestamp_seconds",
			Help:      "Unix time the last sync finished.",
		}),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.messagesEmitted,
		m.syncSuccess,
		m.lastSyncTime,
	)
	return m
}

// ObserveRequest records a completed request. status 0 means the request
// failed before a response was received.
func (m *Metrics) ObserveRequest(status int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.httpRequests.WithLabelValues(label).Inc()
	m.httpDuration.Observe(d.Seconds())
}

func (m *Metrics) MessageEmitted(messageType string) {
	if m == nil {
		return
	}
	m.messagesEmitted.WithLabelValues(messageType).Inc()
}

func (m *Metrics) SyncFinished(success bool, at time.Time) {
	if m == nil {
		return
	}
	if success {
		m.syncSuccess.Set(1)
	} else {
		m.syncSuccess.Set(0)
	}
	m.lastSyncTime.Set(float64(at.Unix()))
}

// WriteTextfile atomically writes all metrics in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
