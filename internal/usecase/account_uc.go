// File: internal/usecase/account_uc.go
package usecase

import (
	"context"

	"github.com/google/uuid"

	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ AccountUseCase = (*accountUC)(nil)

type AccountUseCase interface {
	// Register creates a tenant account in pending status. Activation happens
	// only through the reconciliation engine on a successful payment.
	Register(ctx context.Context, name, email string) (*model.Account, error)
	Get(ctx context.Context, id string) (*model.Account, error)
}

type accountUC struct {
	accounts repository.AccountRepository
}

func NewAccountUseCase(accounts repository.AccountRepository) *accountUC {
	return &accountUC{accounts: accounts}
}

func (u *accountUC) Register(ctx context.Context, name, email string) (*model.Account, error) {
	a, err := model.NewAccount(uuid.NewString(), name, email)
	if err != nil {
		return nil, err
	}
	if err := u.accounts.Save(ctx, nil, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (u *accountUC) Get(ctx context.Context, id string) (*model.Account, error) {
	return u.accounts.FindByID(ctx, nil, id)
}
