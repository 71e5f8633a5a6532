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

var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct{ pool *pgxpool.Pool }

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

const planColumns = `id, name, monthly_price, yearly_price, setup_fee, currency, features, active, created_at`

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, p *model.PricingPlan) error {
	const q = `
INSERT INTO pricing_plans (id, name, monthly_price, yearly_price, setup_fee, currency, features, active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  name=$2, monthly_price=$3, yearly_price=$4, setup_fee=$5, currency=$6, features=$7, active=$8;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Name, p.MonthlyPrice, p.YearlyPrice, p.SetupFee, p.Currency, p.Features, p.Active, p.CreatedAt)
	return storeErr(err)
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PricingPlan, error) {
	q := `SELECT ` + planColumns + ` FROM pricing_plans WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *planRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.PricingPlan, error) {
	q := `SELECT ` + planColumns + ` FROM pricing_plans WHERE active ORDER BY monthly_price ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []*model.PricingPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *planRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE pricing_plans SET active=false WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id)
	return storeErr(err)
}

func scanPlan(row pgx.Row) (*model.PricingPlan, error) {
	p := &model.PricingPlan{}
	err := row.Scan(&p.ID, &p.Name, &p.MonthlyPrice, &p.YearlyPrice, &p.SetupFee, &p.Currency, &p.Features, &p.Active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
