package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

var _ repository.AccountRepository = (*accountRepo)(nil)

type accountRepo struct{ pool *pgxpool.Pool }

func NewAccountRepo(pool *pgxpool.Pool) *accountRepo {
	return &accountRepo{pool: pool}
}

func (r *accountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
INSERT INTO accounts (id, name, email, status, plan_id, total_payments, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  name=$2, email=$3, status=$4, plan_id=$5, updated_at=$8;`

	_, err := execSQL(ctx, r.pool, tx, q, a.ID, a.Name, a.Email, a.Status, a.PlanID, a.TotalPayments, a.CreatedAt, a.UpdatedAt)
	return storeErr(err)
}

func (r *accountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	const q = `SELECT id, name, email, status, plan_id, total_payments, created_at, updated_at FROM accounts WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	a := &model.Account{}
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Status, &a.PlanID, &a.TotalPayments, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return a, nil
}

func (r *accountRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, to model.AccountStatus, from ...model.AccountStatus) (bool, error) {
	if len(from) == 0 {
		return false, domain.ErrInvalidArgument
	}
	fromSet := make([]string, len(from))
	for i, s := range from {
		fromSet[i] = string(s)
	}
	const q = `UPDATE accounts SET status=$2, updated_at=NOW() WHERE id=$1 AND status = ANY($3);`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(to), fromSet)
	if err != nil {
		return false, storeErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *accountRepo) SetCurrentPlan(ctx context.Context, tx repository.Tx, id, planID string) error {
	const q = `UPDATE accounts SET plan_id=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, planID)
	return storeErr(err)
}

func (r *accountRepo) AddToTotalPayments(ctx context.Context, tx repository.Tx, id string, amount int64) error {
	const q = `UPDATE accounts SET total_payments = total_payments + $2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, amount)
	return storeErr(err)
}
