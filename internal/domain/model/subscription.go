package model

import (
	"time"

	"saas-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPendingPayment SubscriptionStatus = "pending_payment"
	SubscriptionStatusActive         SubscriptionStatus = "active"
	SubscriptionStatusPaused         SubscriptionStatus = "paused"
	SubscriptionStatusCancelled      SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired        SubscriptionStatus = "expired"
	SubscriptionStatusFailed         SubscriptionStatus = "failed"
)

// Subscription is one billing relationship between an account and a plan.
// At most one subscription per account may be active at a time; the
// reconciliation engine enforces that, not a uniqueness constraint, because
// historical and cancelled rows are retained.
type Subscription struct {
	ID              string // UUID
	AccountID       string
	PlanID          string
	Snapshot        PricingSnapshot
	BillingCycle    BillingCycle
	Status          SubscriptionStatus
	OrderID         string  // gateway order id of the checkout/renewal in flight
	LastPaidOrderID *string // most recent order whose payment extended this subscription
	AutoRenew       bool
	StartAt         *time.Time
	EndAt           *time.Time
	RenewalAt       *time.Time
	FailureReason   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewSubscription creates a subscription awaiting its first payment.
func NewSubscription(id, accountID string, plan *PricingPlan, cycle BillingCycle, snapshot PricingSnapshot, orderID string) (*Subscription, error) {
	if id == "" || accountID == "" || plan.IsZero() || !cycle.Valid() || orderID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		ID:           id,
		AccountID:    accountID,
		PlanID:       plan.ID,
		Snapshot:     snapshot,
		BillingCycle: cycle,
		Status:       SubscriptionStatusPendingPayment,
		OrderID:      orderID,
		AutoRenew:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NextPeriodEnd computes the end date a successful payment extends this
// subscription to: one cycle from now, or from the current end date when it
// is still in the future (early renewal keeps the remaining time).
func (s *Subscription) NextPeriodEnd(now time.Time) time.Time {
	from := now
	if s.EndAt != nil && s.EndAt.After(now) {
		from = *s.EndAt
	}
	return s.BillingCycle.Period(from)
}
