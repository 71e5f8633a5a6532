package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subColumns = `id, account_id, plan_id, snapshot, billing_cycle, status, order_id, last_paid_order_id, auto_renew, start_at, end_at, renewal_at, failure_reason, created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	snap, err := json.Marshal(s.Snapshot)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO subscriptions (
  id, account_id, plan_id, snapshot, billing_cycle, status, order_id, last_paid_order_id, auto_renew, start_at, end_at, renewal_at, failure_reason, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (id) DO UPDATE SET
  snapshot=$4, billing_cycle=$5, status=$6, order_id=$7, last_paid_order_id=$8, auto_renew=$9, start_at=$10, end_at=$11, renewal_at=$12, failure_reason=$13, updated_at=$15;`

	_, err = execSQL(ctx, r.pool, tx, q, s.ID, s.AccountID, s.PlanID, snap, s.BillingCycle, s.Status, s.OrderID, s.LastPaidOrderID, s.AutoRenew, s.StartAt, s.EndAt, s.RenewalAt, s.FailureReason, s.CreatedAt, s.UpdatedAt)
	return storeErr(err)
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	q := `SELECT ` + subColumns + ` FROM subscriptions WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanSub(row)
}

func (r *subscriptionRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Subscription, error) {
	q := `SELECT ` + subColumns + ` FROM subscriptions WHERE order_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	return scanSub(row)
}

func (r *subscriptionRepo) FindActiveByAccount(ctx context.Context, tx repository.Tx, accountID string) (*model.Subscription, error) {
	q := `SELECT ` + subColumns + ` FROM subscriptions WHERE account_id=$1 AND status='active' ORDER BY updated_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, accountID)
	if err != nil {
		return nil, err
	}
	return scanSub(row)
}

// UpdateStatusIf transitions only from the allowed predecessor set, in one
// conditional UPDATE.
func (r *subscriptionRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, to model.SubscriptionStatus, reason string, from ...model.SubscriptionStatus) (bool, error) {
	if len(from) == 0 {
		return false, domain.ErrInvalidArgument
	}
	fromSet := make([]string, len(from))
	for i, s := range from {
		fromSet[i] = string(s)
	}
	const q = `
UPDATE subscriptions
   SET status = $2,
       failure_reason = CASE WHEN $3 <> '' THEN $3 ELSE failure_reason END,
       updated_at = NOW()
 WHERE id = $1
   AND status = ANY($4);`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(to), reason, fromSet)
	if err != nil {
		return false, storeErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

// SupersedeOthers cancels the account's other active subscriptions. One
// statement, so the one-active rule holds under concurrent activations.
func (r *subscriptionRepo) SupersedeOthers(ctx context.Context, tx repository.Tx, accountID, keepID, reason string) (int, error) {
	const q = `
UPDATE subscriptions
   SET status = 'cancelled',
       failure_reason = $3,
       updated_at = NOW()
 WHERE account_id = $1
   AND id <> $2
   AND status = 'active';`

	cmd, err := execSQL(ctx, r.pool, tx, q, accountID, keepID, reason)
	if err != nil {
		return 0, storeErr(err)
	}
	return int(cmd.RowsAffected()), nil
}

// MarkPaid activates and extends the subscription, keyed by the paying order
// id so redelivered completion events cannot double-extend the period.
func (r *subscriptionRepo) MarkPaid(ctx context.Context, tx repository.Tx, id, orderID string, startAt, endAt, renewalAt time.Time) (bool, error) {
	const q = `
UPDATE subscriptions
   SET status = 'active',
       last_paid_order_id = $2,
       start_at = COALESCE(start_at, $3),
       end_at = $4,
       renewal_at = $5,
       failure_reason = '',
       updated_at = NOW()
 WHERE id = $1
   AND last_paid_order_id IS DISTINCT FROM $2
   AND status IN ('pending_payment','active');`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, orderID, startAt, endAt, renewalAt)
	if err != nil {
		return false, storeErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *subscriptionRepo) ListPendingPaymentOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + subColumns + ` FROM subscriptions WHERE status='pending_payment' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSub(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func scanSub(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	var snap []byte
	err := row.Scan(&s.ID, &s.AccountID, &s.PlanID, &snap, &s.BillingCycle, &s.Status, &s.OrderID, &s.LastPaidOrderID, &s.AutoRenew, &s.StartAt, &s.EndAt, &s.RenewalAt, &s.FailureReason, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(snap) > 0 {
		if err := json.Unmarshal(snap, &s.Snapshot); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return s, nil
}
