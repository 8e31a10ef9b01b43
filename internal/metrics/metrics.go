// Package metrics exposes prometheus instruments for the auth service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation labels.
const (
	OpRegister = "register"
	OpLogin    = "login"
	OpVerify   = "verify"
)

// Outcome labels.
const (
	OutcomeSuccess   = "success"
	OutcomeInvalid   = "invalid_input"
	OutcomeDuplicate = "duplicate"
	OutcomeDenied    = "denied"
	OutcomeExpired   = "expired"
	OutcomeError     = "error"
)

// Metrics holds the collectors for one registry.
type Metrics struct {
	AuthAttempts *prometheus.CounterVec
	AuthDuration *prometheus.HistogramVec
	UsersTotal   prometheus.Gauge
	WSClients    prometheus.Gauge
}

// New creates the collectors and registers them with reg.
// Panics if registration fails (following prometheus convention).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wellness_auth_attempts_total",
				Help: "Total number of authentication operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		AuthDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wellness_auth_duration_seconds",
				Help:    "Duration of authentication operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		UsersTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wellness_auth_users",
			Help: "Number of registered users",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wellness_auth_event_stream_clients",
			Help: "Number of connected admin event stream clients",
		}),
	}
	reg.MustRegister(m.AuthAttempts, m.AuthDuration, m.UsersTotal, m.WSClients)
	return m
}

// RecordAuth counts one operation and observes its duration. A nil receiver
// is a no-op so callers need not check whether metrics are enabled.
func (m *Metrics) RecordAuth(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(operation, outcome).Inc()
	m.AuthDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetUsers records the current user count.
func (m *Metrics) SetUsers(n int) {
	if m == nil {
		return
	}
	m.UsersTotal.Set(float64(n))
}

// IncUsers bumps the user gauge after a registration.
func (m *Metrics) IncUsers() {
	if m == nil {
		return
	}
	m.UsersTotal.Inc()
}

// SetClients records the number of connected event stream clients.
func (m *Metrics) SetClients(n int) {
	if m == nil {
		return
	}
	m.WSClients.Set(float64(n))
}
