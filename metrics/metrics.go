package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "quizledger"

// Metrics groups the collectors exported on /metrics.
type Metrics struct {
	LedgerEvents     *prometheus.CounterVec
	LedgerFrozen     prometheus.Gauge
	FrozenRejections prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is convenient in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LedgerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "events_total",
			Help:      "Events appended to the submission ledger, by kind.",
		}, []string{"kind"}),
		LedgerFrozen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "frozen",
			Help:      "1 once the submission ledger has frozen.",
		}),
		FrozenRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frozen_rejections_total",
			Help:      "Mutating requests rejected because the ledger is frozen.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.LedgerEvents, m.LedgerFrozen, m.FrozenRejections)
	}
	return m
}
