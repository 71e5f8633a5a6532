package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(webhookRequestsTotal, webhookSignatureFailures)
}

var (
	webhookRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_requests_total",
			Help: "Inbound gateway webhook deliveries by result (ok/malformed/rejected/rate_limited/store_error).",
		},
		[]string{"result"},
	)

	webhookSignatureFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_signature_failures_total",
			Help: "Webhook deliveries whose HMAC signature did not match.",
		},
	)
)

func IncWebhookRequest(result string) { webhookRequestsTotal.WithLabelValues(norm(result)).Inc() }
func IncWebhookSignatureFailure()     { webhookSignatureFailures.Inc() }
