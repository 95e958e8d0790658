// Package metrics records login-flow outcomes for Prometheus scraping.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder counts login initiations and validation outcomes.
type Recorder struct {
	loginsStarted prometheus.Counter
	validations   *prometheus.CounterVec
	sessions      prometheus.Counter
}

// NewRecorder registers the gateway's collectors with the default registry.
func NewRecorder() *Recorder {
	return NewRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewRecorderWithRegistry registers with a custom registry. Use this in
// tests to avoid duplicate-registration panics.
func NewRecorderWithRegistry(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		loginsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sso_logins_started_total",
			Help: "Login initiations redirected to the IdP",
		}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sso_response_validations_total",
			Help: "SAML response validation outcomes",
		}, []string{"outcome"}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sso_sessions_issued_total",
			Help: "Session tokens issued after successful validation",
		}),
	}
	reg.MustRegister(r.loginsStarted, r.validations, r.sessions)
	return r
}

func (r *Recorder) LoginStarted() {
	r.loginsStarted.Inc()
}

// ValidationResult records an outcome label: "success" or an error code.
func (r *Recorder) ValidationResult(outcome string) {
	r.validations.WithLabelValues(outcome).Inc()
}

func (r *Recorder) SessionIssued() {
	r.sessions.Inc()
}
