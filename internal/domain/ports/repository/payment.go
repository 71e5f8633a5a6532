package repository

import (
	"context"
	"time"

	"saas-billing/internal/domain/model"
)

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Payment, error)

	// UpdateStatusIfNotTerminal transitions the payment only when its current
	// status is still non-terminal, in a single conditional UPDATE. The bool
	// result reports whether this caller won the transition; false means
	// someone else already handled it (duplicate delivery, or the reaper).
	UpdateStatusIfNotTerminal(ctx context.Context, tx Tx, id string, status model.PaymentStatus, txnID string, reason string, completedAt *time.Time) (bool, error)

	// SetInvoiceID records the back-reference to the invoice a completed
	// payment produced.
	SetInvoiceID(ctx context.Context, tx Tx, id, invoiceID string) error

	// ListPendingOlderThan returns non-terminal payments created before the
	// cutoff, oldest first, for the reconciler sweep.
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}
