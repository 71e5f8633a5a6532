//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
	"saas-billing/internal/usecase"
)

func testSubAndPayment(t *testing.T, price, paid int64) (*model.Subscription, *model.Payment) {
	t.Helper()
	plan, err := model.NewPricingPlan("plan-1", "Team", price, price*10, 0, "USD", nil)
	if err != nil {
		t.Fatalf("new plan: %v", err)
	}
	snap, err := model.SnapshotFor(plan, model.BillingCycleMonthly, 0)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	sub, err := model.NewSubscription("sub-1", "acc-1", plan, model.BillingCycleMonthly, snap, "ord-1")
	if err != nil {
		t.Fatalf("new subscription: %v", err)
	}
	now := time.Now()
	p := &model.Payment{
		ID: "pay-1", AccountID: "acc-1", SubscriptionID: sub.ID, OrderID: "ord-1",
		Gateway: "mockpay", Amount: paid, Currency: "USD", Status: model.PaymentStatusCompleted,
		CreatedAt: now, UpdatedAt: now, CompletedAt: &now,
	}
	return sub, p
}

func TestInvoiceUseCase_ComposeForPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("should compose a fully paid invoice with tax", func(t *testing.T) {
		repo := NewMockInvoiceRepo()
		uc := usecase.NewInvoiceUseCase(repo, NewMockLocker(), 900, newTestLogger())
		// charged = 10000 + 9% tax, same formula the checkout path uses
		sub, p := testSubAndPayment(t, 10_000, 10_000+usecase.TaxOn(10_000, 900))

		inv, created, err := uc.ComposeForPayment(ctx, p, sub)
		if err != nil {
			t.Fatalf("compose: %v", err)
		}
		if !created {
			t.Fatal("expected a new invoice")
		}
		if inv.Subtotal != 10_000 || inv.TaxAmount != 900 || inv.TotalAmount != 10_900 {
			t.Errorf("amounts subtotal=%d tax=%d total=%d, want 10000/900/10900", inv.Subtotal, inv.TaxAmount, inv.TotalAmount)
		}
		if inv.Status != model.InvoiceStatusPaid || inv.DueAmount != 0 {
			t.Errorf("status=%s due=%d, want paid/0", inv.Status, inv.DueAmount)
		}
		wantPrefix := "INV-" + time.Now().Format("200601") + "-"
		if !strings.HasPrefix(inv.Number, wantPrefix) {
			t.Errorf("number = %q, want prefix %q", inv.Number, wantPrefix)
		}
	})

	t.Run("should mark a short payment as partial", func(t *testing.T) {
		repo := NewMockInvoiceRepo()
		uc := usecase.NewInvoiceUseCase(repo, NewMockLocker(), 0, newTestLogger())
		sub, p := testSubAndPayment(t, 10_000, 4_000)

		inv, _, err := uc.ComposeForPayment(ctx, p, sub)
		if err != nil {
			t.Fatalf("compose: %v", err)
		}
		if inv.Status != model.InvoiceStatusPartial {
			t.Errorf("status = %s, want partial", inv.Status)
		}
		if inv.PaidAmount != 4_000 || inv.DueAmount != 6_000 {
			t.Errorf("paid=%d due=%d, want 4000/6000", inv.PaidAmount, inv.DueAmount)
		}
	})

	t.Run("should include the setup fee as its own line", func(t *testing.T) {
		repo := NewMockInvoiceRepo()
		uc := usecase.NewInvoiceUseCase(repo, NewMockLocker(), 0, newTestLogger())

		plan, _ := model.NewPricingPlan("plan-2", "Business", 29_900, 299_000, 10_000, "USD", nil)
		snap, _ := model.SnapshotFor(plan, model.BillingCycleMonthly, 0)
		sub, _ := model.NewSubscription("sub-2", "acc-1", plan, model.BillingCycleMonthly, snap, "ord-2")
		now := time.Now()
		p := &model.Payment{ID: "pay-2", AccountID: "acc-1", OrderID: "ord-2", Amount: 39_900,
			Currency: "USD", Status: model.PaymentStatusCompleted, CreatedAt: now, UpdatedAt: now}

		inv, _, err := uc.ComposeForPayment(ctx, p, sub)
		if err != nil {
			t.Fatalf("compose: %v", err)
		}
		if len(inv.LineItems) != 2 {
			t.Fatalf("line items = %d, want 2", len(inv.LineItems))
		}
		if inv.LineItems[1].Amount != 10_000 {
			t.Errorf("setup fee line = %d, want 10000", inv.LineItems[1].Amount)
		}
		if inv.Subtotal != 39_900 {
			t.Errorf("subtotal = %d, want 39900", inv.Subtotal)
		}
	})

	t.Run("should return the existing invoice on a second compose", func(t *testing.T) {
		repo := NewMockInvoiceRepo()
		uc := usecase.NewInvoiceUseCase(repo, NewMockLocker(), 0, newTestLogger())
		sub, p := testSubAndPayment(t, 10_000, 10_000)

		first, created, err := uc.ComposeForPayment(ctx, p, sub)
		if err != nil || !created {
			t.Fatalf("first compose: created=%v err=%v", created, err)
		}
		second, created, err := uc.ComposeForPayment(ctx, p, sub)
		if err != nil {
			t.Fatalf("second compose: %v", err)
		}
		if created {
			t.Error("second compose claimed to create a new invoice")
		}
		if second.ID != first.ID || second.Number != first.Number {
			t.Errorf("second compose returned a different invoice: %s vs %s", second.Number, first.Number)
		}
	})

	t.Run("should retry with the next sequence on a number collision", func(t *testing.T) {
		repo := NewMockInvoiceRepo()
		uc := usecase.NewInvoiceUseCase(repo, NewMockLocker(), 0, newTestLogger())
		sub, p := testSubAndPayment(t, 10_000, 10_000)

		collided := false
		repo.SaveFunc = func(ctx context.Context, tx repository.Tx, inv *model.Invoice) error {
			if !collided {
				collided = true
				return domain.ErrAlreadyExists
			}
			repo.SaveFunc = nil
			return repo.Save(ctx, tx, inv)
		}

		inv, created, err := uc.ComposeForPayment(ctx, p, sub)
		if err != nil {
			t.Fatalf("compose: %v", err)
		}
		if !created {
			t.Fatal("expected a new invoice")
		}
		wantNumber := fmt.Sprintf("INV-%s-%06d", time.Now().Format("200601"), 2)
		if inv.Number != wantNumber {
			t.Errorf("number = %q, want %q (second sequence value)", inv.Number, wantNumber)
		}
	})

	t.Run("should return the concurrent winner instead of burning retries", func(t *testing.T) {
		repo := NewMockInvoiceRepo()
		uc := usecase.NewInvoiceUseCase(repo, NewMockLocker(), 0, newTestLogger())
		sub, p := testSubAndPayment(t, 10_000, 10_000)

		// A concurrent compose for the same payment lands between our
		// existence check and the save. Every retry attempt must re-check for
		// it, or three number collisions exhaust the loop.
		repo.SaveFunc = func(ctx context.Context, tx repository.Tx, inv *model.Invoice) error {
			repo.SaveFunc = nil
			winner, err := model.NewInvoice("inv-winner", "INV-other-000042", sub.AccountID, sub.ID, p.ID,
				[]model.LineItem{{Description: "Team (monthly)", Quantity: 1, UnitAmount: 10_000, Amount: 10_000}},
				0, 0, time.Now(), time.Now().AddDate(0, 1, 0))
			if err != nil {
				t.Fatalf("winner invoice: %v", err)
			}
			if err := repo.Save(ctx, tx, winner); err != nil {
				t.Fatalf("store winner: %v", err)
			}
			return domain.ErrAlreadyExists
		}

		inv, created, err := uc.ComposeForPayment(ctx, p, sub)
		if err != nil {
			t.Fatalf("compose: %v", err)
		}
		if created {
			t.Error("loser compose claimed to create a new invoice")
		}
		if inv.ID != "inv-winner" {
			t.Errorf("returned invoice %s, want the concurrent winner", inv.ID)
		}
	})

	t.Run("should surface a held sequence lock", func(t *testing.T) {
		repo := NewMockInvoiceRepo()
		locker := NewMockLocker()
		locker.Denied = true
		uc := usecase.NewInvoiceUseCase(repo, locker, 0, newTestLogger())
		sub, p := testSubAndPayment(t, 10_000, 10_000)

		if _, _, err := uc.ComposeForPayment(ctx, p, sub); !errors.Is(err, domain.ErrLockNotAcquired) {
			t.Fatalf("err = %v, want ErrLockNotAcquired", err)
		}
	})
}
