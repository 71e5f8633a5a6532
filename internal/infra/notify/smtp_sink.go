package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"saas-billing/internal/config"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/adapter"
)

var _ adapter.NotificationSink = (*SMTPSink)(nil)

// SMTPSink renders billing notifications as plain-text mail.
type SMTPSink struct {
	addr     string
	from     string
	retryURL string
}

func NewSMTPSink(cfg *config.NotifyConfig) *SMTPSink {
	return &SMTPSink{addr: cfg.SMTPAddr, from: cfg.From, retryURL: cfg.RetryURL}
}

func (s *SMTPSink) Notify(ctx context.Context, kind model.NotificationKind, recipient string, payload map[string]any) error {
	subject, body := s.render(kind, payload)
	msg := buildMessage(s.from, recipient, subject, body)
	return smtp.SendMail(s.addr, nil, s.from, []string{recipient}, msg)
}

func (s *SMTPSink) render(kind model.NotificationKind, payload map[string]any) (subject, body string) {
	amount := formatAmount(payload)
	orderID, _ := payload["order_id"].(string)

	switch kind {
	case model.NotifyPaymentCompleted:
		subject = "Payment received"
		body = fmt.Sprintf("We received your payment of %s.\nOrder: %s\n", amount, orderID)
		if num, ok := payload["invoice_number"].(string); ok && num != "" {
			body += fmt.Sprintf("Invoice: %s\n", num)
		}
	case model.NotifyPaymentFailed:
		subject = "Payment failed"
		body = fmt.Sprintf("Your payment for order %s failed.\n", orderID)
		if reason, ok := payload["reason"].(string); ok && reason != "" {
			body += fmt.Sprintf("Reason: %s\n", reason)
		}
		body += s.retryLine(orderID)
	case model.NotifyPaymentTimeout:
		subject = "Payment not confirmed"
		body = fmt.Sprintf("We did not receive confirmation for order %s in time and cancelled it.\n", orderID)
		body += s.retryLine(orderID)
	default:
		subject = string(kind)
		body = fmt.Sprintf("Billing update for order %s.\n", orderID)
	}
	return subject, body
}

func (s *SMTPSink) retryLine(orderID string) string {
	if s.retryURL == "" {
		return ""
	}
	return fmt.Sprintf("You can retry here: %s/%s\n", strings.TrimRight(s.retryURL, "/"), orderID)
}

func formatAmount(payload map[string]any) string {
	currency, _ := payload["currency"].(string)
	switch v := payload["amount"].(type) {
	case int64:
		return fmt.Sprintf("%d.%02d %s", v/100, v%100, currency)
	case float64:
		cents := int64(v)
		return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
	}
	return currency
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
