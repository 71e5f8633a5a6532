package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(reaperSweepsTotal, reaperFailedTotal, reaperRevertedTotal)
}

var (
	reaperSweepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reaper_sweeps_total",
			Help: "Completed timeout reaper sweeps.",
		},
	)

	reaperFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reaper_subscriptions_failed_total",
			Help: "Subscriptions the reaper transitioned to failed for payment timeout.",
		},
	)

	reaperRevertedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reaper_accounts_reverted_total",
			Help: "Accounts reverted to pending after an unconfirmed payment.",
		},
	)
)

func IncReaperSweep()         { reaperSweepsTotal.Inc() }
func AddReaperFailed(n int)   { reaperFailedTotal.Add(float64(n)) }
func AddReaperReverted(n int) { reaperRevertedTotal.Add(float64(n)) }
