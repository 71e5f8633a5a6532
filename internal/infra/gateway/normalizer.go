package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"saas-billing/internal/config"
	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/infra/metrics"
)

// SignatureHeader carries the gateway-computed HMAC of the delivery.
const SignatureHeader = "X-Gateway-Signature"

// Normalizer verifies inbound webhook signatures and maps the processor's
// heterogeneous field naming into a CanonicalEvent. The processor has shipped
// two body schemas over its integration versions (snake_case and camelCase);
// decode tries each in turn and fails closed when neither matches.
type Normalizer struct {
	secret []byte
	policy config.SignaturePolicy
	log    *zerolog.Logger
}

func NewNormalizer(cfg config.GatewayConfig, logger *zerolog.Logger) *Normalizer {
	nlog := logger.With().Str("component", "Normalizer").Logger()
	return &Normalizer{
		secret: []byte(cfg.WebhookSecret),
		policy: cfg.SignaturePolicy,
		log:    &nlog,
	}
}

// snakeBody is the original webhook schema.
type snakeBody struct {
	OrderID  string      `json:"order_id"`
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
	Status   string      `json:"status"`
	TxnID    string      `json:"transaction_id"`
	Reason   string      `json:"failure_reason"`
}

// camelBody is the schema newer gateway versions deliver.
type camelBody struct {
	OrderID  string      `json:"orderId"`
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
	Status   string      `json:"status"`
	TxnID    string      `json:"transactionId"`
	Reason   string      `json:"failureReason"`
}

// decoded holds the raw field values a schema variant produced. The signature
// covers the gateway's own serialization, so raw strings are kept alongside
// their canonical interpretation.
type decoded struct {
	orderID   string
	rawAmount string
	rawStatus string
	currency  string
	txnID     string
	reason    string
}

// Normalize decodes and verifies a raw webhook delivery.
//
// Returns ErrMalformedPayload when no schema variant matches, and
// ErrInvalidSignature when the HMAC does not match under strict policy. Under
// permissive policy a mismatched signature yields the event flagged
// Unverified; the reconciliation engine gates those behind a stricter
// idempotency check instead of dropping a possibly-paid customer.
func (n *Normalizer) Normalize(raw []byte, headers http.Header) (*model.CanonicalEvent, error) {
	d, err := decodeVariant(raw)
	if err != nil {
		return nil, err
	}
	ev, err := canonicalize(d)
	if err != nil {
		return nil, err
	}

	sig := headers.Get(SignatureHeader)
	if !n.verify(d, sig) {
		metrics.IncWebhookSignatureFailure()
		if n.policy == config.SignatureStrict {
			n.log.Warn().Str("order_id", ev.OrderID).Msg("signature mismatch, strict policy rejects event")
			return nil, domain.ErrInvalidSignature
		}
		n.log.Warn().Str("order_id", ev.OrderID).Msg("signature mismatch, permissive policy flags event unverified")
		ev.Unverified = true
	}

	ev.ReceivedAt = time.Now()
	return ev, nil
}

func decodeVariant(raw []byte) (*decoded, error) {
	var sb snakeBody
	if err := json.Unmarshal(raw, &sb); err == nil && sb.OrderID != "" && sb.Amount != "" && sb.Status != "" {
		return &decoded{
			orderID: sb.OrderID, rawAmount: sb.Amount.String(), rawStatus: sb.Status,
			currency: sb.Currency, txnID: sb.TxnID, reason: sb.Reason,
		}, nil
	}
	var cb camelBody
	if err := json.Unmarshal(raw, &cb); err == nil && cb.OrderID != "" && cb.Amount != "" && cb.Status != "" {
		return &decoded{
			orderID: cb.OrderID, rawAmount: cb.Amount.String(), rawStatus: cb.Status,
			currency: cb.Currency, txnID: cb.TxnID, reason: cb.Reason,
		}, nil
	}
	return nil, domain.ErrMalformedPayload
}

func canonicalize(d *decoded) (*model.CanonicalEvent, error) {
	amt, err := json.Number(d.rawAmount).Int64()
	if err != nil || amt < 0 {
		return nil, domain.ErrMalformedPayload
	}
	st, ok := model.MapGatewayStatus(d.rawStatus)
	if !ok {
		return nil, domain.ErrMalformedPayload
	}
	return &model.CanonicalEvent{
		OrderID:  d.orderID,
		Amount:   amt,
		Currency: d.currency,
		Status:   st,
		TxnID:    d.txnID,
		Reason:   d.reason,
	}, nil
}

// verify recomputes the gateway HMAC over orderID|amount|status as the
// gateway delivered them and compares in constant time.
func (n *Normalizer) verify(d *decoded, signature string) bool {
	if signature == "" {
		return false
	}
	expected := ComputeSignature(n.secret, d.orderID, d.rawAmount, d.rawStatus)
	got, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(expected)
	return hmac.Equal(got, want)
}

// ComputeSignature builds the gateway's canonical signature string. Exported
// for tests and the dev gateway stub.
func ComputeSignature(secret []byte, orderID, amount, status string) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(orderID + "|" + amount + "|" + status))
	return hex.EncodeToString(h.Sum(nil))
}
