package session

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/florianilch/sessionkeeper/internal/tokensource"
	"github.com/florianilch/sessionkeeper/internal/tokenstore"
)

const metricsNamespace = "sessionkeeper"

type metrics struct {
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	keepalives      *prometheus.CounterVec
	expiresAt       prometheus.Gauge
	refreshedAt     prometheus.Gauge
}

// newMetrics creates the manager's collectors and registers them with reg
// when it is non-nil.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "refreshes_total",
			Help:      "Session refresh attempts by result.",
		}, []string{"result"}), // result: success|config_error|parse_error|rejected|incomplete|error
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of the login handshake.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20},
		}),
		keepalives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "keepalives_total",
			Help:      "Keepalive probes by result.",
		}, []string{"result"}), // result: success|failure|skipped
		expiresAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "session_expires_timestamp_seconds",
			Help:      "Unix time the current session is due for refresh (0 if it has no expiry).",
		}),
		refreshedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "session_refreshed_timestamp_seconds",
			Help:      "Unix time the current session was obtained.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.refreshes, m.refreshDuration, m.keepalives, m.expiresAt, m.refreshedAt)
	}
	return m
}

func (m *metrics) observeBundle(b tokenstore.Bundle) {
	m.refreshedAt.Set(float64(b.RefreshedAt.Unix()))
	if b.ExpiresAt != nil {
		m.expiresAt.Set(float64(b.ExpiresAt.Unix()))
	} else {
		m.expiresAt.Set(0)
	}
}

// refreshResult maps a refresh error onto the result label.
func refreshResult(err error) string {
	var rejected *tokensource.LoginRejectedError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCredentialsNotConfigured):
		return "config_error"
	case errors.Is(err, tokensource.ErrFormTokenNotFound):
		return "parse_error"
	case errors.As(err, &rejected):
		return "rejected"
	case errors.Is(err, tokensource.ErrSessionIncomplete), errors.Is(err, tokenstore.ErrIncompleteBundle):
		return "incomplete"
	default:
		return "error"
	}
}
