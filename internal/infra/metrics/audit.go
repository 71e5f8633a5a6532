package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(auditDivergence, auditRunsTotal)
}

var (
	auditDivergence = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_ledger_divergence",
			Help: "Largest absolute disagreement between the three ledger sums at the last audit run, in minor units.",
		},
	)

	auditRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_runs_total",
			Help: "Audit reconciler runs by result (consistent/divergent).",
		},
		[]string{"result"},
	)
)

func SetAuditDivergence(v int64) { auditDivergence.Set(float64(v)) }
func IncAuditRun(result string)  { auditRunsTotal.WithLabelValues(norm(result)).Inc() }
