// Package metrics holds the Prometheus collectors for the allocation engine
// and the grace period sweeper.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "inboxd"

// Outcome labels for transition attempts.
const (
	OutcomeOK          = "ok"
	OutcomeNotEligible = "not_eligible"
	OutcomeForbidden   = "forbidden"
	OutcomeError       = "error"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	// Transitions counts transition attempts.
	// Labels: op (allocate, claim, ...), outcome (ok, not_eligible, forbidden, error)
	Transitions *prometheus.CounterVec

	// Candidates observes the size of each scored candidate set.
	Candidates prometheus.Histogram

	GraceCreated   prometheus.Counter
	GraceReclaimed prometheus.Counter
	SweepErrors    prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "allocation",
			Name:      "transitions_total",
			Help:      "Conversation transition attempts by operation and outcome",
		}, []string{"op", "outcome"}),
		Candidates: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "allocation",
			Name:      "candidates",
			Help:      "Number of queued conversations scored per request",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		GraceCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grace",
			Name:      "entries_created_total",
			Help:      "Grace period entries created when operators go offline",
		}),
		GraceReclaimed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grace",
			Name:      "reclaimed_total",
			Help:      "Conversations returned to the queue by the expiry sweep",
		}),
		SweepErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grace",
			Name:      "sweep_errors_total",
			Help:      "Grace period entries that failed to process",
		}),
	}
}

// Transition records one attempt of op.
func (m *Metrics) Transition(op, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(op, outcome).Inc()
}

// CandidateSet records the size of a scored candidate set.
func (m *Metrics) CandidateSet(n int) {
	if m == nil {
		return
	}
	m.Candidates.Observe(float64(n))
}

func (m *Metrics) GraceEntries(n int) {
	if m == nil {
		return
	}
	m.GraceCreated.Add(float64(n))
}

func (m *Metrics) Reclaimed() {
	if m == nil {
		return
	}
	m.GraceReclaimed.Inc()
}

func (m *Metrics) SweepError() {
	if m == nil {
		return
	}
	m.SweepErrors.Inc()
}
