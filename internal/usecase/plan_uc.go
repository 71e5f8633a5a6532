// File: internal/usecase/plan_uc.go
package usecase

import (
	"context"

	"github.com/google/uuid"

	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ PlanUseCase = (*planUC)(nil)

type PlanUseCase interface {
	Create(ctx context.Context, name string, monthly, yearly, setupFee int64, currency string, features []string) (*model.PricingPlan, error)
	Get(ctx context.Context, id string) (*model.PricingPlan, error)
	ListActive(ctx context.Context) ([]*model.PricingPlan, error)
	Deactivate(ctx context.Context, id string) error
}

type planUC struct {
	plans repository.PlanRepository
}

func NewPlanUseCase(plans repository.PlanRepository) *planUC {
	return &planUC{plans: plans}
}

func (u *planUC) Create(ctx context.Context, name string, monthly, yearly, setupFee int64, currency string, features []string) (*model.PricingPlan, error) {
	p, err := model.NewPricingPlan(uuid.NewString(), name, monthly, yearly, setupFee, currency, features)
	if err != nil {
		return nil, err
	}
	if err := u.plans.Save(ctx, nil, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (u *planUC) Get(ctx context.Context, id string) (*model.PricingPlan, error) {
	return u.plans.FindByID(ctx, nil, id)
}

func (u *planUC) ListActive(ctx context.Context) ([]*model.PricingPlan, error) {
	return u.plans.ListActive(ctx, nil)
}

func (u *planUC) Deactivate(ctx context.Context, id string) error {
	return u.plans.Deactivate(ctx, nil, id)
}
