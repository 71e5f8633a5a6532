//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/adapter"
	"saas-billing/internal/usecase"
	"saas-billing/internal/usecase/pricing"
)

type checkoutDeps struct {
	accounts *MockAccountRepo
	plans    *MockPlanRepo
	subs     *MockSubscriptionRepo
	payments *MockPaymentRepo
	gw       *MockGateway
	uc       usecase.CheckoutUseCase
}

func newCheckoutDeps(t *testing.T, taxRateBps int) *checkoutDeps {
	t.Helper()
	d := &checkoutDeps{
		accounts: NewMockAccountRepo(),
		plans:    NewMockPlanRepo(),
		subs:     NewMockSubscriptionRepo(),
		payments: NewMockPaymentRepo(),
		gw:       &MockGateway{},
	}
	d.uc = usecase.NewCheckoutUseCase(
		d.accounts, d.plans, d.subs, d.payments,
		d.gw, pricing.DaysRemaining{}, &MockTxManager{}, taxRateBps, newTestLogger(),
	)

	ctx := context.Background()
	acc, err := model.NewAccount("acc-1", "Acme", "billing@acme.test")
	if err != nil {
		t.Fatalf("new account: %v", err)
	}
	if err := d.accounts.Save(ctx, nil, acc); err != nil {
		t.Fatalf("save account: %v", err)
	}
	starter, _ := model.NewPricingPlan("plan-starter", "Starter", 2_499, 24_990, 0, "USD", nil)
	team, _ := model.NewPricingPlan("plan-team", "Team", 9_900, 99_000, 0, "USD", nil)
	_ = d.plans.Save(ctx, nil, starter)
	_ = d.plans.Save(ctx, nil, team)
	return d
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("should open a pending subscription and payment for a first checkout", func(t *testing.T) {
		d := newCheckoutDeps(t, 0)

		res, err := d.uc.Checkout(ctx, "acc-1", "plan-starter", model.BillingCycleMonthly)
		if err != nil {
			t.Fatalf("checkout: %v", err)
		}
		if res.Amount != 2_499 || res.Currency != "USD" {
			t.Errorf("amount=%d currency=%s, want 2499 USD", res.Amount, res.Currency)
		}
		if res.SessionHandle != "session-"+res.OrderID {
			t.Errorf("session handle %q does not carry the order id", res.SessionHandle)
		}

		sub, err := d.subs.FindByOrderID(ctx, nil, res.OrderID)
		if err != nil {
			t.Fatalf("subscription not saved: %v", err)
		}
		if sub.Status != model.SubscriptionStatusPendingPayment {
			t.Errorf("subscription status = %s, want pending_payment", sub.Status)
		}
		p, err := d.payments.FindByOrderID(ctx, nil, res.OrderID)
		if err != nil {
			t.Fatalf("payment not saved: %v", err)
		}
		if p.Status != model.PaymentStatusPending || p.Amount != 2_499 || p.SubscriptionID != sub.ID {
			t.Errorf("payment status=%s amount=%d sub=%s", p.Status, p.Amount, p.SubscriptionID)
		}
		if len(d.gw.Created) != 1 || d.gw.Created[0].CustomerEmail != "billing@acme.test" {
			t.Errorf("gateway order not created for the account holder: %+v", d.gw.Created)
		}
	})

	t.Run("should charge tax on top of the snapshot amount", func(t *testing.T) {
		d := newCheckoutDeps(t, 900)

		res, err := d.uc.Checkout(ctx, "acc-1", "plan-team", model.BillingCycleMonthly)
		if err != nil {
			t.Fatalf("checkout: %v", err)
		}
		want := int64(9_900) + usecase.TaxOn(9_900, 900)
		if res.Amount != want {
			t.Errorf("amount = %d, want %d", res.Amount, want)
		}
	})

	t.Run("should reuse the active subscription on renewal", func(t *testing.T) {
		d := newCheckoutDeps(t, 0)

		first, err := d.uc.Checkout(ctx, "acc-1", "plan-starter", model.BillingCycleMonthly)
		if err != nil {
			t.Fatalf("first checkout: %v", err)
		}
		sub, _ := d.subs.FindByOrderID(ctx, nil, first.OrderID)
		now := time.Now()
		end := now.AddDate(0, 1, 0)
		if _, err := d.subs.MarkPaid(ctx, nil, sub.ID, first.OrderID, now, end, end); err != nil {
			t.Fatalf("mark paid: %v", err)
		}

		second, err := d.uc.Checkout(ctx, "acc-1", "plan-starter", model.BillingCycleMonthly)
		if err != nil {
			t.Fatalf("renewal checkout: %v", err)
		}
		if second.OrderID == first.OrderID {
			t.Fatal("renewal reused the old order id")
		}
		renewed, err := d.subs.FindByOrderID(ctx, nil, second.OrderID)
		if err != nil {
			t.Fatalf("renewed subscription: %v", err)
		}
		if renewed.ID != sub.ID {
			t.Errorf("renewal opened a new subscription %s, want reuse of %s", renewed.ID, sub.ID)
		}
	})

	t.Run("should credit the unused remainder on a plan change", func(t *testing.T) {
		d := newCheckoutDeps(t, 0)

		// Starter subscription exactly halfway through a 30-day period.
		first, err := d.uc.Checkout(ctx, "acc-1", "plan-starter", model.BillingCycleMonthly)
		if err != nil {
			t.Fatalf("first checkout: %v", err)
		}
		sub, _ := d.subs.FindByOrderID(ctx, nil, first.OrderID)
		// A minute of slack keeps the day arithmetic from flooring to 14
		// between seeding and checkout.
		start := time.Now().Add(-15*24*time.Hour + time.Minute)
		end := start.Add(30 * 24 * time.Hour)
		if _, err := d.subs.MarkPaid(ctx, nil, sub.ID, first.OrderID, start, end, end); err != nil {
			t.Fatalf("mark paid: %v", err)
		}

		res, err := d.uc.Checkout(ctx, "acc-1", "plan-team", model.BillingCycleMonthly)
		if err != nil {
			t.Fatalf("upgrade checkout: %v", err)
		}
		// 15 of 30 days unused: credit is half the Starter obligation.
		wantCredit := int64(2_499) * 15 / 30
		if res.Amount != 9_900-wantCredit {
			t.Errorf("amount = %d, want %d (9900 minus %d credit)", res.Amount, 9_900-wantCredit, wantCredit)
		}
		next, err := d.subs.FindByOrderID(ctx, nil, res.OrderID)
		if err != nil {
			t.Fatalf("new subscription: %v", err)
		}
		if next.ID == sub.ID {
			t.Error("plan change reused the old subscription")
		}
		if next.Snapshot.DiscountAmount != wantCredit {
			t.Errorf("snapshot discount = %d, want %d", next.Snapshot.DiscountAmount, wantCredit)
		}
	})

	t.Run("should reject an inactive plan", func(t *testing.T) {
		d := newCheckoutDeps(t, 0)
		if err := d.plans.Deactivate(ctx, nil, "plan-team"); err != nil {
			t.Fatalf("deactivate: %v", err)
		}
		if _, err := d.uc.Checkout(ctx, "acc-1", "plan-team", model.BillingCycleMonthly); !errors.Is(err, domain.ErrPlanInactive) {
			t.Fatalf("err = %v, want ErrPlanInactive", err)
		}
	})

	t.Run("should reject an unknown billing cycle", func(t *testing.T) {
		d := newCheckoutDeps(t, 0)
		if _, err := d.uc.Checkout(ctx, "acc-1", "plan-team", model.BillingCycle("weekly")); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("err = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("should reject an unknown account", func(t *testing.T) {
		d := newCheckoutDeps(t, 0)
		if _, err := d.uc.Checkout(ctx, "acc-missing", "plan-team", model.BillingCycleMonthly); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("should not persist anything when the gateway rejects the order", func(t *testing.T) {
		d := newCheckoutDeps(t, 0)
		d.gw.CreateOrderFunc = func(ctx context.Context, req adapter.OrderRequest) (string, error) {
			return "", errors.New("gateway unavailable")
		}

		if _, err := d.uc.Checkout(ctx, "acc-1", "plan-team", model.BillingCycleMonthly); err == nil {
			t.Fatal("expected checkout to fail")
		}
		if subs, _ := d.subs.ListPendingPaymentOlderThan(ctx, nil, time.Now().Add(time.Hour), 10); len(subs) != 0 {
			t.Errorf("subscription persisted despite gateway failure: %d", len(subs))
		}
		if pays, _ := d.payments.ListPendingOlderThan(ctx, nil, time.Now().Add(time.Hour), 10); len(pays) != 0 {
			t.Errorf("payment persisted despite gateway failure: %d", len(pays))
		}
	})
}
