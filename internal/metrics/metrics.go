// Package metrics exposes Prometheus counters for authentication outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes.
const (
	LoginSucceeded          = "succeeded"
	LoginInvalidCredentials = "invalid_credentials"
	LoginError              = "error"
)

// Principal resolution results of the deserialize stage.
const (
	PrincipalAnonymous   = "anonymous"
	PrincipalResolved    = "resolved"
	PrincipalInvalid     = "invalid_token"
	PrincipalUnknownUser = "unknown_user"
	PrincipalLookupError = "lookup_error"
)

// Gates that reject requests.
const (
	GateAuth = "auth"
	GateRole = "role"
)

// Metrics holds the auth collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry             *prometheus.Registry
	loginAttempts        *prometheus.CounterVec
	principalResolutions *prometheus.CounterVec
	gateRejections       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Total number of login attempts by outcome",
		}, []string{"outcome"}),
		principalResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_principal_resolutions_total",
			Help: "Total number of requests by principal resolution result",
		}, []string{"result"}),
		gateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_gate_rejections_total",
			Help: "Total number of requests rejected by an auth gate",
		}, []string{"gate"}),
	}
	m.registry.MustRegister(
		m.loginAttempts,
		m.principalResolutions,
		m.gateRejections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePrincipal(result string) {
	if m == nil {
		return
	}
	m.principalResolutions.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRejection(gate string) {
	if m == nil {
		return
	}
	m.gateRejections.WithLabelValues(gate).Inc()
}
