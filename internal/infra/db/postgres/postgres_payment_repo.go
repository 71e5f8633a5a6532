package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, account_id, subscription_id, order_id, gateway, amount, currency, txn_id, status, retry_count, failure_reason, invoice_id, created_at, updated_at, completed_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, account_id, subscription_id, order_id, gateway, amount, currency, txn_id, status, retry_count, failure_reason, invoice_id, created_at, updated_at, completed_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
) ON CONFLICT (id) DO UPDATE SET
  txn_id=$8, status=$9, retry_count=$10, failure_reason=$11, invoice_id=$12, updated_at=$14, completed_at=$15;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.AccountID, p.SubscriptionID, p.OrderID, p.Gateway, p.Amount, p.Currency, p.TxnID, p.Status, p.RetryCount, p.FailureReason, p.InvoiceID, p.CreatedAt, p.UpdatedAt, p.CompletedAt)
	return storeErr(err)
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// UpdateStatusIfNotTerminal atomically transitions the payment only when its
// current status is still non-terminal. This single conditional UPDATE is the
// engine's idempotency boundary; RowsAffected tells the caller whether it won.
func (r *paymentRepo) UpdateStatusIfNotTerminal(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, txnID, reason string, completedAt *time.Time) (bool, error) {
	const q = `
UPDATE payments
   SET status = $2,
       txn_id = CASE WHEN $3 <> '' THEN $3 ELSE txn_id END,
       failure_reason = CASE WHEN $4 <> '' THEN $4 ELSE failure_reason END,
       completed_at = COALESCE($5, completed_at),
       updated_at = NOW()
 WHERE id = $1
   AND status IN ('pending','processing');`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status), txnID, reason, completedAt)
	if err != nil {
		return false, storeErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) SetInvoiceID(ctx context.Context, tx repository.Tx, id, invoiceID string) error {
	const q = `UPDATE payments SET invoice_id=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, invoiceID)
	return storeErr(err)
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE status IN ('pending','processing') AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var status string
	err := row.Scan(&p.ID, &p.AccountID, &p.SubscriptionID, &p.OrderID, &p.Gateway, &p.Amount, &p.Currency, &p.TxnID, &status, &p.RetryCount, &p.FailureReason, &p.InvoiceID, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.Status = model.PaymentStatus(strings.TrimSpace(status))
	return p, nil
}
