// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/adapter"
	"saas-billing/internal/domain/ports/repository"
	"saas-billing/internal/infra/metrics"
	"saas-billing/internal/usecase/pricing"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// CheckoutResult is returned to the client, who completes payment at the
// gateway using the session handle.
type CheckoutResult struct {
	OrderID       string
	SessionHandle string
	Amount        int64
	Currency      string
}

type CheckoutUseCase interface {
	// Checkout creates a pending payment plus gateway order for the plan. A
	// renewal of the account's current plan reuses its subscription; a
	// different plan opens a new pending_payment subscription with a
	// proration credit for the unused remainder of the old one.
	Checkout(ctx context.Context, accountID, planID string, cycle model.BillingCycle) (*CheckoutResult, error)
}

type checkoutUC struct {
	accounts   repository.AccountRepository
	plans      repository.PlanRepository
	subs       repository.SubscriptionRepository
	payments   repository.PaymentRepository
	gateway    adapter.PaymentGateway
	strategy   pricing.Strategy
	tm         repository.TransactionManager
	taxRateBps int
	log        *zerolog.Logger
}

func NewCheckoutUseCase(
	accounts repository.AccountRepository,
	plans repository.PlanRepository,
	subs repository.SubscriptionRepository,
	payments repository.PaymentRepository,
	gateway adapter.PaymentGateway,
	strategy pricing.Strategy,
	tm repository.TransactionManager,
	taxRateBps int,
	logger *zerolog.Logger,
) *checkoutUC {
	clog := logger.With().Str("component", "CheckoutUC").Logger()
	return &checkoutUC{
		accounts:   accounts,
		plans:      plans,
		subs:       subs,
		payments:   payments,
		gateway:    gateway,
		strategy:   strategy,
		tm:         tm,
		taxRateBps: taxRateBps,
		log:        &clog,
	}
}

func (u *checkoutUC) Checkout(ctx context.Context, accountID, planID string, cycle model.BillingCycle) (*CheckoutResult, error) {
	if !cycle.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	acc, err := u.accounts.FindByID(ctx, nil, accountID)
	if err != nil {
		return nil, err
	}
	plan, err := u.plans.FindByID(ctx, nil, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, domain.ErrPlanInactive
	}

	now := time.Now()
	orderID := ulid.Make().String()

	active, err := u.subs.FindActiveByAccount(ctx, nil, accountID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	var sub *model.Subscription
	switch {
	case active != nil && active.PlanID == planID:
		// Renewal: the completed payment will extend the existing period.
		sub = active
		sub.OrderID = orderID
		sub.UpdatedAt = now
	case active != nil:
		// Plan change: credit the unused remainder of the old plan.
		credit := u.strategy.Credit(active, now)
		snap, err := model.SnapshotFor(plan, cycle, credit)
		if err != nil {
			return nil, err
		}
		sub, err = model.NewSubscription(uuid.NewString(), accountID, plan, cycle, snap, orderID)
		if err != nil {
			return nil, err
		}
	default:
		snap, err := model.SnapshotFor(plan, cycle, 0)
		if err != nil {
			return nil, err
		}
		sub, err = model.NewSubscription(uuid.NewString(), accountID, plan, cycle, snap, orderID)
		if err != nil {
			return nil, err
		}
	}

	amount := sub.Snapshot.FinalAmount + TaxOn(sub.Snapshot.FinalAmount, u.taxRateBps)
	p := &model.Payment{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		SubscriptionID: sub.ID,
		OrderID:        orderID,
		Gateway:        u.gateway.Name(),
		Amount:         amount,
		Currency:       sub.Snapshot.Currency,
		Status:         model.PaymentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	handle, err := u.gateway.CreateOrder(ctx, adapter.OrderRequest{
		OrderID:       orderID,
		Amount:        amount,
		Currency:      p.Currency,
		CustomerEmail: acc.Email,
		Description:   fmt.Sprintf("%s plan, %s billing", plan.Name, cycle),
	})
	if err != nil {
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		return u.payments.Save(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncPayment(string(model.PaymentStatusPending))
	u.log.Info().Str("order_id", orderID).Str("account_id", accountID).Int64("amount", amount).Msg("checkout order created")
	return &CheckoutResult{OrderID: orderID, SessionHandle: handle, Amount: amount, Currency: p.Currency}, nil
}
