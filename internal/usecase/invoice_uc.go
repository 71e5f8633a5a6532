// File: internal/usecase/invoice_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/adapter"
	"saas-billing/internal/domain/ports/repository"
	"saas-billing/internal/infra/metrics"
)

// Compile-time check
var _ InvoiceUseCase = (*invoiceUC)(nil)

type InvoiceUseCase interface {
	// ComposeForPayment builds the invoice for a completed payment. Idempotent:
	// if an invoice for this payment already exists it is returned unchanged
	// with created=false.
	ComposeForPayment(ctx context.Context, p *model.Payment, sub *model.Subscription) (inv *model.Invoice, created bool, err error)
	// ListByAccount pages through an account's invoices.
	ListByAccount(ctx context.Context, accountID string, offset, limit int) ([]*model.Invoice, error)
}

const seqLockTTL = 5 * time.Second

type invoiceUC struct {
	invoices   repository.InvoiceRepository
	locker     adapter.Locker
	taxRateBps int
	log        *zerolog.Logger
}

func NewInvoiceUseCase(invoices repository.InvoiceRepository, locker adapter.Locker, taxRateBps int, logger *zerolog.Logger) *invoiceUC {
	ilog := logger.With().Str("component", "InvoiceUC").Logger()
	return &invoiceUC{invoices: invoices, locker: locker, taxRateBps: taxRateBps, log: &ilog}
}

// TaxOn computes the tax amount this composer will add on top of a net
// obligation. The checkout path uses it so the charged amount and the
// invoice total agree.
func TaxOn(net int64, rateBps int) int64 {
	if rateBps <= 0 {
		return 0
	}
	return net * int64(rateBps) / 10_000
}

func (u *invoiceUC) ComposeForPayment(ctx context.Context, p *model.Payment, sub *model.Subscription) (*model.Invoice, bool, error) {
	now := time.Now()
	period := now.Format("200601")

	// Sequence allocation is serialized per period; a collision can still slip
	// through when the lock expires mid-compose, so the save is retried with
	// the next value instead of failing the payment.
	token, err := u.locker.TryLock(ctx, "invoice_seq:"+period, seqLockTTL)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = u.locker.Unlock(ctx, "invoice_seq:"+period, token) }()

	items := lineItems(sub)
	tax := TaxOn(sub.Snapshot.FinalAmount, u.taxRateBps)

	periodStart := now
	if sub.StartAt != nil {
		periodStart = *sub.StartAt
	}
	periodEnd := periodStart
	if sub.EndAt != nil {
		periodEnd = *sub.EndAt
	}

	for attempt := 0; attempt < 3; attempt++ {
		// Re-checked every attempt: an ErrAlreadyExists from Save can mean a
		// concurrent compose for the same payment won, not a number
		// collision, and the loser must return the winner's invoice instead
		// of burning sequence values.
		if existing, err := u.invoices.FindByPaymentID(ctx, nil, p.ID); err == nil {
			return existing, false, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, false, err
		}

		seq, err := u.invoices.NextSequence(ctx, nil, period)
		if err != nil {
			return nil, false, err
		}
		number := fmt.Sprintf("INV-%s-%06d", period, seq)

		inv, err := model.NewInvoice(uuid.NewString(), number, sub.AccountID, sub.ID, p.ID, items, tax, sub.Snapshot.DiscountAmount, periodStart, periodEnd)
		if err != nil {
			return nil, false, err
		}
		if err := inv.ApplyPayment(p.ID, p.Amount, now); err != nil {
			return nil, false, err
		}

		if err := u.invoices.Save(ctx, nil, inv); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				// invoice number collision; take the next sequence value
				metrics.IncInvoiceSequenceRetry()
				u.log.Warn().Str("number", number).Msg("invoice number collision, retrying with next sequence")
				continue
			}
			return nil, false, err
		}

		metrics.IncInvoiceComposed(string(inv.Status))
		u.log.Info().Str("invoice", inv.Number).Str("payment_id", p.ID).Str("status", string(inv.Status)).Msg("invoice composed")
		return inv, true, nil
	}
	return nil, false, domain.ErrOperationFailed
}

func (u *invoiceUC) ListByAccount(ctx context.Context, accountID string, offset, limit int) ([]*model.Invoice, error) {
	return u.invoices.ListByAccount(ctx, nil, accountID, offset, limit)
}

// lineItems builds the invoice lines from the subscription's pricing
// snapshot: the cycle price, plus the setup fee as its own line when nonzero.
func lineItems(sub *model.Subscription) []model.LineItem {
	items := []model.LineItem{{
		Description: fmt.Sprintf("Subscription (%s)", sub.BillingCycle),
		Quantity:    1,
		UnitAmount:  sub.Snapshot.Amount,
		Amount:      sub.Snapshot.Amount,
	}}
	if sub.Snapshot.SetupFee > 0 {
		items = append(items, model.LineItem{
			Description: "Setup fee",
			Quantity:    1,
			UnitAmount:  sub.Snapshot.SetupFee,
			Amount:      sub.Snapshot.SetupFee,
		})
	}
	return items
}
