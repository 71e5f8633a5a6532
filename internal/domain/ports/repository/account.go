package repository

import (
	"context"

	"saas-billing/internal/domain/model"
)

type AccountRepository interface {
	Save(ctx context.Context, tx Tx, a *model.Account) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Account, error)

	// UpdateStatusIf flips the account status only from the allowed
	// predecessor set.
	UpdateStatusIf(ctx context.Context, tx Tx, id string, to model.AccountStatus, from ...model.AccountStatus) (bool, error)

	// SetCurrentPlan records the plan the account is paying for.
	SetCurrentPlan(ctx context.Context, tx Tx, id, planID string) error

	// AddToTotalPayments bumps the advisory running sum.
	AddToTotalPayments(ctx context.Context, tx Tx, id string, amount int64) error
}
