package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(invoicesComposedTotal, invoiceSequenceRetries)
}

var (
	invoicesComposedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoices_composed_total",
			Help: "Invoices composed, by resulting status (paid/partial).",
		},
		[]string{"status"},
	)

	invoiceSequenceRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "invoice_sequence_retries_total",
			Help: "Invoice number collisions retried with the next sequence value.",
		},
	)
)

func IncInvoiceComposed(status string) { invoicesComposedTotal.WithLabelValues(norm(status)).Inc() }
func IncInvoiceSequenceRetry()         { invoiceSequenceRetries.Inc() }
