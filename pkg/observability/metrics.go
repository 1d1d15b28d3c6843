package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics holds the Prometheus metrics recorded by the client side of
// the identity API.
type ClientMetrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AssignmentCallsTotal *prometheus.CounterVec
	SessionTransitions   *prometheus.CounterVec
}

// NewClientMetrics creates and registers the client metrics on registry.
// A nil registry leaves the collectors unregistered, which is what tests
// and one-shot commands want.
func NewClientMetrics(registry prometheus.Registerer) *ClientMetrics {
	m := &ClientMetrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idctl_http_requests_total",
				Help: "Total number of identity API requests issued",
			},
			[]string{"method", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "idctl_http_request_duration_seconds",
				Help:    "Identity API request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		AssignmentCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idctl_assignment_calls_total",
				Help: "Assignment calls issued by the reconciler",
			},
			[]string{"relation", "op", "outcome"},
		),
		SessionTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idctl_session_transitions_total",
				Help: "Session state transitions",
			},
			[]string{"to"},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.HTTPRequestsTotal,
			m.HTTPRequestDuration,
			m.AssignmentCallsTotal,
			m.SessionTransitions,
		)
	}

	return m
}

// RecordRequest records one gateway round trip. status 0 means the request
// never produced a response.
func (m *ClientMetrics) RecordRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.HTTPRequestsTotal.WithLabelValues(method, label).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordAssignment records the outcome of a single assign or unassign call
func (m *ClientMetrics) RecordAssignment(relation, op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.AssignmentCallsTotal.WithLabelValues(relation, op, outcome).Inc()
}

// RecordTransition records a session transition to state
func (m *ClientMetrics) RecordTransition(state string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(state).Inc()
}
