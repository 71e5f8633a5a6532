package model

import (
	"time"

	"saas-billing/internal/domain"
)

type AccountStatus string

const (
	AccountStatusPending   AccountStatus = "pending"   // created at signup; never paid
	AccountStatusActive    AccountStatus = "active"    // flipped only by the reconciliation engine
	AccountStatusSuspended AccountStatus = "suspended" // admin action
)

// Account is a tenant. TotalPayments is a denormalized running sum kept for
// dashboards; the audit reconciler, not this field, is the source of truth.
type Account struct {
	ID            string // UUID
	Name          string
	Email         string
	Status        AccountStatus
	PlanID        *string // current plan, nil until first successful payment
	TotalPayments int64   // minor units, advisory only
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewAccount validates and constructs a tenant account in pending status.
func NewAccount(id, name, email string) (*Account, error) {
	if id == "" || name == "" || email == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Account{
		ID:        id,
		Name:      name,
		Email:     email,
		Status:    AccountStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
