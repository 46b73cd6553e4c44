// Package metrics exposes Prometheus counters for the governance
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's counters.
type Metrics struct {
	Admissions     *prometheus.CounterVec
	Denials        *prometheus.CounterVec
	Dispatches     *prometheus.CounterVec
	DispatchErrors *prometheus.CounterVec
}

// New creates and registers the counters.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modelgate",
			Name:      "admissions_total",
			Help:      "Requests admitted by the quota ledger, by tier.",
		}, []string{"tier"}),
		Denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modelgate",
			Name:      "denials_total",
			Help:      "Requests denied by the quota ledger, by violated limit.",
		}, []string{"tier", "limit"}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modelgate",
			Name:      "dispatches_total",
			Help:      "Completed backend dispatches, by provider family.",
		}, []string{"family"}),
		DispatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modelgate",
			Name:      "dispatch_errors_total",
			Help:      "Failed backend dispatches, by provider family.",
		}, []string{"family"}),
	}
	reg.MustRegister(m.Admissions, m.Denials, m.Dispatches, m.DispatchErrors)
	return m
}
