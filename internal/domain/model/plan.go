package model

import (
	"time"

	"saas-billing/internal/domain"
)

type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

// Period returns the duration one paid cycle adds to a subscription.
func (c BillingCycle) Period(from time.Time) time.Time {
	if c == BillingCycleYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

func (c BillingCycle) Valid() bool {
	return c == BillingCycleMonthly || c == BillingCycleYearly
}

// PricingPlan is a catalog entry. Prices are in minor units. Plans are never
// deleted, only deactivated, because subscriptions keep referencing them.
type PricingPlan struct {
	ID           string
	Name         string
	MonthlyPrice int64
	YearlyPrice  int64
	SetupFee     int64
	Currency     string
	Features     []string
	Active       bool
	CreatedAt    time.Time
}

func (p *PricingPlan) IsZero() bool { return p == nil || p.ID == "" }

// PriceFor returns the cycle price for this plan.
func (p *PricingPlan) PriceFor(cycle BillingCycle) int64 {
	if cycle == BillingCycleYearly {
		return p.YearlyPrice
	}
	return p.MonthlyPrice
}

// NewPricingPlan validates and constructs a plan.
func NewPricingPlan(id, name string, monthly, yearly, setupFee int64, currency string, features []string) (*PricingPlan, error) {
	if id == "" || name == "" || currency == "" || monthly <= 0 || yearly <= 0 || setupFee < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &PricingPlan{
		ID:           id,
		Name:         name,
		MonthlyPrice: monthly,
		YearlyPrice:  yearly,
		SetupFee:     setupFee,
		Currency:     currency,
		Features:     features,
		Active:       true,
		CreatedAt:    time.Now(),
	}, nil
}

// PricingSnapshot is copied onto a subscription at creation time so later
// catalog price changes never alter an existing subscription's obligation.
type PricingSnapshot struct {
	Amount         int64 // cycle price at subscription time
	SetupFee       int64
	DiscountAmount int64
	FinalAmount    int64 // amount + setup fee - discount; what the customer owes per cycle
	Currency       string
}

// SnapshotFor freezes the plan's pricing for one billing cycle.
func SnapshotFor(plan *PricingPlan, cycle BillingCycle, discount int64) (PricingSnapshot, error) {
	if plan.IsZero() || !cycle.Valid() || discount < 0 {
		return PricingSnapshot{}, domain.ErrInvalidArgument
	}
	amount := plan.PriceFor(cycle)
	if discount > amount+plan.SetupFee {
		discount = amount + plan.SetupFee
	}
	return PricingSnapshot{
		Amount:         amount,
		SetupFee:       plan.SetupFee,
		DiscountAmount: discount,
		FinalAmount:    amount + plan.SetupFee - discount,
		Currency:       plan.Currency,
	}, nil
}
