package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

var _ repository.InvoiceRepository = (*invoiceRepo)(nil)

type invoiceRepo struct{ pool *pgxpool.Pool }

func NewInvoiceRepo(pool *pgxpool.Pool) *invoiceRepo {
	return &invoiceRepo{pool: pool}
}

const invoiceColumns = `id, number, account_id, subscription_id, payment_id, line_items, subtotal, tax_amount, discount_amount, total_amount, paid_amount, due_amount, status, applications, period_start, period_end, created_at, updated_at`

// Save upserts by id. The unique indexes on number and payment_id surface as
// ErrAlreadyExists so callers can retry sequence collisions.
func (r *invoiceRepo) Save(ctx context.Context, tx repository.Tx, inv *model.Invoice) error {
	items, err := json.Marshal(inv.LineItems)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	apps, err := json.Marshal(inv.Applications)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO invoices (
  id, number, account_id, subscription_id, payment_id, line_items, subtotal, tax_amount, discount_amount, total_amount, paid_amount, due_amount, status, applications, period_start, period_end, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
ON CONFLICT (id) DO UPDATE SET
  paid_amount=$11, due_amount=$12, status=$13, applications=$14, updated_at=$18;`

	_, err = execSQL(ctx, r.pool, tx, q, inv.ID, inv.Number, inv.AccountID, inv.SubscriptionID, inv.PaymentID, items, inv.Subtotal, inv.TaxAmount, inv.DiscountAmount, inv.TotalAmount, inv.PaidAmount, inv.DueAmount, inv.Status, apps, inv.PeriodStart, inv.PeriodEnd, inv.CreatedAt, inv.UpdatedAt)
	return storeErr(err)
}

func (r *invoiceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Invoice, error) {
	q := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanInvoice(row)
}

func (r *invoiceRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Invoice, error) {
	q := `SELECT ` + invoiceColumns + ` FROM invoices WHERE payment_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, err
	}
	return scanInvoice(row)
}

func (r *invoiceRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, offset, limit int) ([]*model.Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + invoiceColumns + ` FROM invoices WHERE account_id=$1 ORDER BY created_at DESC OFFSET $2 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, accountID, offset, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []*model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

// NextSequence bumps and returns the per-period counter. The single upsert
// keeps allocation monotonic under concurrency.
func (r *invoiceRepo) NextSequence(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	const q = `
INSERT INTO invoice_sequences (period, last_value) VALUES ($1, 1)
ON CONFLICT (period) DO UPDATE SET last_value = invoice_sequences.last_value + 1
RETURNING last_value;`

	row, err := pickRow(ctx, r.pool, tx, q, period)
	if err != nil {
		return 0, err
	}
	var v int64
	if err := row.Scan(&v); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return v, nil
}

func scanInvoice(row pgx.Row) (*model.Invoice, error) {
	inv := &model.Invoice{}
	var items, apps []byte
	err := row.Scan(&inv.ID, &inv.Number, &inv.AccountID, &inv.SubscriptionID, &inv.PaymentID, &items, &inv.Subtotal, &inv.TaxAmount, &inv.DiscountAmount, &inv.TotalAmount, &inv.PaidAmount, &inv.DueAmount, &inv.Status, &apps, &inv.PeriodStart, &inv.PeriodEnd, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &inv.LineItems); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	if len(apps) > 0 {
		if err := json.Unmarshal(apps, &inv.Applications); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return inv, nil
}
