package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"    // order created; awaiting the gateway
	PaymentStatusProcessing PaymentStatus = "processing" // gateway acknowledged; not settled yet
	PaymentStatusCompleted  PaymentStatus = "completed"  // settled at the gateway
	PaymentStatusFailed     PaymentStatus = "failed"     // declined or timed out
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

// IsTerminal reports whether no further transition is permitted from this
// status. Terminal state is absorbing: every write that moves a payment out of
// a non-terminal status must be conditional on the current status still being
// non-terminal.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusCancelled:
		return true
	}
	return false
}

// Payment is one attempt to pay: one record per gateway order id.
type Payment struct {
	ID             string // UUID
	AccountID      string
	SubscriptionID string
	OrderID        string // ULID; unique external identifier shared with the gateway
	Gateway        string // provider name, e.g. "payflow"
	Amount         int64  // minor units
	Currency       string
	TxnID          string // gateway transaction id, set on settlement
	Status         PaymentStatus
	RetryCount     int
	FailureReason  string
	InvoiceID      *string // back-reference to the invoice this payment produced
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}
