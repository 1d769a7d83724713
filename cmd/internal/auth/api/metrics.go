package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts the security-relevant outcomes of the auth surface.
type Metrics struct {
	SessionsIssued  prometheus.Counter
	Rotations       *prometheus.CounterVec
	ReplaysDetected prometheus.Counter
	AuthFailures    *prometheus.CounterVec
}

// NewMetrics builds and registers the auth metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gitfolio",
			Subsystem: "auth",
			Name:      "sessions_issued_total",
			Help:      "Sessions created after a successful GitHub login.",
		}),
		Rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gitfolio",
			Subsystem: "auth",
			Name:      "refresh_rotations_total",
			Help:      "Refresh rotation attempts by outcome.",
		}, []string{"result"}),
		ReplaysDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gitfolio",
			Subsystem: "auth",
			Name:      "refresh_replays_detected_total",
			Help:      "Refresh tokens presented after rotation or revocation.",
		}),
		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gitfolio",
			Subsystem: "auth",
			Name:      "request_auth_failures_total",
			Help:      "Rejected request authentications by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.SessionsIssued, m.Rotations, m.ReplaysDetected, m.AuthFailures)
	return m
}
