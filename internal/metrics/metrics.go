// Package metrics exposes prometheus collectors for the booking API: HTTP
// traffic, slot lock arbitration and push connections.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	lockOutcomes  *prometheus.CounterVec
	pushConns     prometheus.Gauge
	bookingErrors *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caredesk",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "caredesk",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request handling latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		lockOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caredesk",
			Subsystem: "locks",
			Name:      "advisory_total",
			Help:      "Advisory slot lock requests by outcome",
		}, []string{"outcome"}), // acquired, rejected, released
		pushConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "caredesk",
			Subsystem: "push",
			Name:      "connections",
			Help:      "Currently open websocket connections",
		}),
		bookingErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caredesk",
			Subsystem: "booking",
			Name:      "conflicts_total",
			Help:      "Booking attempts lost to capacity or contention",
		}, []string{"reason"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.lockOutcomes, m.pushConns, m.bookingErrors)
	return m
}

func (m *Metrics) ObserveRequest(route, method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(seconds)
}

func (m *Metrics) LockAcquired() {
	if m == nil {
		return
	}
	m.lockOutcomes.WithLabelValues("acquired").Inc()
}

func (m *Metrics) LockRejected() {
	if m == nil {
		return
	}
	m.lockOutcomes.WithLabelValues("rejected").Inc()
}

func (m *Metrics) LockReleased() {
	if m == nil {
		return
	}
	m.lockOutcomes.WithLabelValues("released").Inc()
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.pushConns.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.pushConns.Dec()
}

func (m *Metrics) BookingConflict(reason string) {
	if m == nil {
		return
	}
	m.bookingErrors.WithLabelValues(reason).Inc()
}
