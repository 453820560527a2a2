// Package metrics holds the Prometheus collectors of the planning engine.
//
// Collectors are registered on the Registerer passed to New, so tests can use
// a private registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "payplan"

type Metrics struct {
	PlanRowsGenerated  *prometheus.CounterVec
	PlanRowsPreserved  prometheus.Counter
	PlanGenerations    *prometheus.CounterVec
	PlanGenerationTime prometheus.Histogram
	PayComputations    *prometheus.CounterVec
	LedgerSkipped      prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PlanRowsGenerated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "plan",
			Name:      "rows_generated_total",
			Help:      "Plan rows written by regeneration, by entity type.",
		}, []string{"entity"}),
		PlanRowsPreserved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "plan",
			Name:      "rows_preserved_total",
			Help:      "Locked plan rows kept verbatim during regeneration.",
		}),
		PlanGenerations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "plan",
			Name:      "generations_total",
			Help:      "Plan generation runs by outcome.",
		}, []string{"outcome"}),
		PlanGenerationTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "plan",
			Name:      "generation_seconds",
			Help:      "Wall time of one plan generation run.",
			Buckets:   prometheus.DefBuckets,
		}),
		PayComputations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payroll",
			Name:      "computations_total",
			Help:      "Pay breakdowns computed, by window.",
		}, []string{"window"}),
		LedgerSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payroll",
			Name:      "ledger_entries_skipped_total",
			Help:      "Adjustment or debt entries ignored for a non-positive amount.",
		}),
	}
}

func (m *Metrics) RowGenerated(entity string) {
	if m == nil {
		return
	}
	m.PlanRowsGenerated.WithLabelValues(entity).Inc()
}

func (m *Metrics) RowPreserved() {
	if m == nil {
		return
	}
	m.PlanRowsPreserved.Inc()
}

// GenerationDone records one run's outcome ("ok" or "error") and duration.
func (m *Metrics) GenerationDone(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.PlanGenerations.WithLabelValues(outcome).Inc()
	m.PlanGenerationTime.Observe(time.Since(started).Seconds())
}

func (m *Metrics) PayComputed(window string) {
	if m == nil {
		return
	}
	m.PayComputations.WithLabelValues(window).Inc()
}

func (m *Metrics) LedgerEntriesSkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.LedgerSkipped.Add(float64(n))
}
