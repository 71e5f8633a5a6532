package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(reconcileEventsTotal)
}

var reconcileEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reconcile_events_total",
		Help: "Canonical payment events by reconciliation outcome (applied/duplicate/unknown_order/dropped_unverified/recovered).",
	},
	[]string{"outcome"},
)

func IncReconcileEvent(outcome string) {
	reconcileEventsTotal.WithLabelValues(norm(outcome)).Inc()
}
