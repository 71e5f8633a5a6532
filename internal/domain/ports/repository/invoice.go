package repository

import (
	"context"

	"saas-billing/internal/domain/model"
)

type InvoiceRepository interface {
	Save(ctx context.Context, tx Tx, inv *model.Invoice) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Invoice, error)
	// FindByPaymentID is the composer's idempotency lookup: one invoice per
	// originating payment.
	FindByPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.Invoice, error)
	ListByAccount(ctx context.Context, tx Tx, accountID string, offset, limit int) ([]*model.Invoice, error)

	// NextSequence returns the next invoice sequence value for a billing
	// period (e.g. "202608"). Values are monotonically increasing per period.
	NextSequence(ctx context.Context, tx Tx, period string) (int64, error)
}
