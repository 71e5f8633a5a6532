package repository

import (
	"context"

	"saas-billing/internal/domain/model"
)

type PlanRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PricingPlan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PricingPlan, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.PricingPlan, error)
	Deactivate(ctx context.Context, tx Tx, id string) error
}
