package repository

import (
	"context"
	"time"

	"saas-billing/internal/domain/model"
)

type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Subscription, error)
	FindActiveByAccount(ctx context.Context, tx Tx, accountID string) (*model.Subscription, error)

	// UpdateStatusIf transitions the subscription only when its current status
	// is in the allowed predecessor set. False means another actor got there
	// first.
	UpdateStatusIf(ctx context.Context, tx Tx, id string, to model.SubscriptionStatus, reason string, from ...model.SubscriptionStatus) (bool, error)

	// SupersedeOthers cancels every other active subscription of the account
	// in one conditional write, enforcing the one-active-subscription rule
	// when a payment activates a new plan. Returns how many were cancelled.
	SupersedeOthers(ctx context.Context, tx Tx, accountID, keepID, reason string) (int, error)

	// MarkPaid activates the subscription and extends its period, keyed by the
	// paying order id: the write applies only if that order has not already
	// been recorded as paid, which makes renewal extension idempotent under
	// redelivery.
	MarkPaid(ctx context.Context, tx Tx, id, orderID string, startAt, endAt, renewalAt time.Time) (bool, error)

	// ListPendingPaymentOlderThan returns pending_payment subscriptions
	// created before the cutoff, for the timeout reaper.
	ListPendingPaymentOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Subscription, error)
}
