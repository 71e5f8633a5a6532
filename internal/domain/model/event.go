package model

import (
	"strings"
	"time"
)

// EventStatus is the canonical, gateway-agnostic payment status vocabulary.
type EventStatus string

const (
	EventStatusCompleted  EventStatus = "completed"
	EventStatusFailed     EventStatus = "failed"
	EventStatusProcessing EventStatus = "processing"
)

// CanonicalEvent is the normalized representation of a payment status
// notification, produced by the gateway adapter from a webhook delivery or by
// polling the gateway directly.
type CanonicalEvent struct {
	OrderID    string
	Amount     int64 // minor units
	Currency   string
	Status     EventStatus
	TxnID      string
	Reason     string // gateway-supplied failure reason, if any
	Unverified bool   // signature did not match; permissive policy let it through
	ReceivedAt time.Time
}

// MapGatewayStatus folds the processor's status vocabulary into the
// canonical enum. Unknown words are rejected rather than defaulted.
func MapGatewayStatus(s string) (EventStatus, bool) {
	switch strings.ToLower(s) {
	case "success", "paid", "settled", "completed":
		return EventStatusCompleted, true
	case "failed", "declined":
		return EventStatusFailed, true
	case "pending", "processing":
		return EventStatusProcessing, true
	}
	return "", false
}

// NotificationKind names the downstream notifications the billing core emits.
type NotificationKind string

const (
	NotifyPaymentCompleted NotificationKind = "payment_completed"
	NotifyPaymentFailed    NotificationKind = "payment_failed"
	NotifyPaymentTimeout   NotificationKind = "payment_timeout"
)

// OutboxMessage is a pending notification. Rows are written in the same
// transaction scope as the state transition they announce and drained by the
// dispatcher, so the core commit never waits on the sink.
type OutboxMessage struct {
	ID        string // UUID
	Kind      NotificationKind
	Recipient string
	Payload   map[string]any
	Attempts  int
	CreatedAt time.Time
	SentAt    *time.Time
}
