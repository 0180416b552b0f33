package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Engine holds the counters the contest services report to.
type Engine struct {
	Transitions *prometheus.CounterVec
	Conflicts   prometheus.Counter
	Outcomes    *prometheus.CounterVec
	TickRuns    *prometheus.CounterVec
	TickLatency prometheus.Histogram
}

func NewEngine(reg prometheus.Registerer) *Engine {
	m := &Engine{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contests",
			Name:      "transitions_total",
			Help:      "Driver operations that changed contest state, by operation.",
		}, []string{"operation"}),
		Conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "contests",
			Name:      "version_conflicts_total",
			Help:      "Writes rejected because the contest changed concurrently.",
		}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contests",
			Name:      "match_outcomes_total",
			Help:      "Recorded match outcomes, by result.",
		}, []string{"result"}),
		TickRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contests",
			Name:      "tick_contests_total",
			Help:      "Contests visited by the periodic driver, by result.",
		}, []string{"result"}),
		TickLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "contests",
			Name:      "tick_duration_seconds",
			Help:      "Duration of a full driver tick.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Transitions, m.Conflicts, m.Outcomes, m.TickRuns, m.TickLatency)
	}
	return m
}
