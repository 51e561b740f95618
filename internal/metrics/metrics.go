// Package metrics registers and records Prometheus metrics for a process.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for one process. Construct one per process
// and inject it; there is no package-level default.
type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge
	eventsOut    *prometheus.CounterVec
	eventsIn     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(service string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total HTTP requests processed",
			ConstLabels: prometheus.Labels{"service": service},
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration",
			ConstLabels: prometheus.Labels{"service": service},
			Buckets:     []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method", "path"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "http_requests_in_flight",
			Help:        "HTTP requests currently being served",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		eventsOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "bus_events_published_total",
			Help:        "Events accepted by the broker",
			ConstLabels: prometheus.Labels{"service": service},
		}, []string{"subject"}),
		eventsIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "bus_events_consumed_total",
			Help:        "Events handled, by outcome (ok, error, malformed)",
			ConstLabels: prometheus.Labels{"service": service},
		}, []string{"subject", "outcome"}),
	}

	reg.MustRegister(m.httpRequests, m.httpDuration, m.httpInFlight, m.eventsOut, m.eventsIn)
	return m
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncrementInFlight marks a request entering the handler chain.
func (m *Metrics) IncrementInFlight() {
	if m != nil {
		m.httpInFlight.Inc()
	}
}

// DecrementInFlight marks a request leaving the handler chain.
func (m *Metrics) DecrementInFlight() {
	if m != nil {
		m.httpInFlight.Dec()
	}
}

// RecordEventPublished records a broker-accepted publish.
func (m *Metrics) RecordEventPublished(subject string) {
	if m != nil {
		m.eventsOut.WithLabelValues(subject).Inc()
	}
}

// RecordEventConsumed records one delivery attempt outcome.
func (m *Metrics) RecordEventConsumed(subject, outcome string) {
	if m != nil {
		m.eventsIn.WithLabelValues(subject, outcome).Inc()
	}
}
