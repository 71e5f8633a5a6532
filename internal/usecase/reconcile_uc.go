// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/adapter"
	"saas-billing/internal/domain/ports/repository"
	"saas-billing/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileUseCase consumes canonical payment events and idempotently drives
// Payment -> Subscription -> Account -> Invoice state transitions.
type ReconcileUseCase interface {
	// ApplyPaymentEvent applies one canonical event. Duplicate deliveries,
	// out-of-order deliveries and unknown orders all resolve to a nil error;
	// only store failures propagate (the gateway redelivers on those, which
	// idempotency makes safe).
	ApplyPaymentEvent(ctx context.Context, ev *model.CanonicalEvent) error

	// PollOrderStatus refreshes a non-terminal payment from the gateway and
	// applies the result, then returns the stored record.
	PollOrderStatus(ctx context.Context, orderID string) (*model.Payment, error)

	// TimeoutSweep fails payments and subscriptions stuck in pending_payment
	// past the cutoff and reverts optimistically-activated accounts.
	TimeoutSweep(ctx context.Context) (SweepReport, error)
}

// SweepReport summarizes one timeout reaper pass.
type SweepReport struct {
	Examined int
	Failed   int
	Reverted int
	Skipped  int
}

type reconcileUC struct {
	payments repository.PaymentRepository
	subs     repository.SubscriptionRepository
	accounts repository.AccountRepository
	outbox   repository.OutboxRepository
	invoices InvoiceUseCase
	gateway  adapter.PaymentGateway
	tm       repository.TransactionManager
	cutoff   time.Duration
	log      *zerolog.Logger
}

func NewReconcileUseCase(
	payments repository.PaymentRepository,
	subs repository.SubscriptionRepository,
	accounts repository.AccountRepository,
	outbox repository.OutboxRepository,
	invoices InvoiceUseCase,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	pendingCutoff time.Duration,
	logger *zerolog.Logger,
) *reconcileUC {
	rlog := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{
		payments: payments,
		subs:     subs,
		accounts: accounts,
		outbox:   outbox,
		invoices: invoices,
		gateway:  gateway,
		tm:       tm,
		cutoff:   pendingCutoff,
		log:      &rlog,
	}
}

func (u *reconcileUC) ApplyPaymentEvent(ctx context.Context, ev *model.CanonicalEvent) error {
	p, err := u.payments.FindByOrderID(ctx, nil, ev.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Unknown order: acknowledge with a no-op, never fabricate records.
			metrics.IncReconcileEvent("unknown_order")
			u.log.Warn().Str("order_id", ev.OrderID).Msg("event for unknown order, ignoring")
			return nil
		}
		return fmt.Errorf("find payment: %w", err)
	}

	// Unverified events (permissive signature policy) pass only the strictest
	// gate: a known, still-open payment whose stored amount matches exactly.
	if ev.Unverified {
		if p.Status.IsTerminal() || p.Amount != ev.Amount {
			metrics.IncReconcileEvent("dropped_unverified")
			u.log.Warn().Str("order_id", ev.OrderID).Int64("event_amount", ev.Amount).Int64("stored_amount", p.Amount).
				Msg("unverified event failed idempotency gate, dropping")
			return nil
		}
	}

	switch ev.Status {
	case model.EventStatusProcessing:
		// Status only; suppresses premature timeout reaping. A late
		// processing after a terminal status is absorbed by the guard.
		if _, err := u.payments.UpdateStatusIfNotTerminal(ctx, nil, p.ID, model.PaymentStatusProcessing, ev.TxnID, "", nil); err != nil {
			return fmt.Errorf("mark processing: %w", err)
		}
		metrics.IncReconcileEvent("applied")
		return nil

	case model.EventStatusFailed:
		return u.applyFailure(ctx, p, ev.Reason)

	case model.EventStatusCompleted:
		return u.applyCompletion(ctx, p, ev)
	}
	return domain.ErrInvalidArgument
}

// applyFailure records the gateway-reported failure. Account and subscription
// are not reverted here: explicit gateway failure leaves the customer free to
// retry, and timeout reverts belong to the reaper.
func (u *reconcileUC) applyFailure(ctx context.Context, p *model.Payment, reason string) error {
	if reason == "" {
		reason = "gateway reported failure"
	}
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		won, err := u.payments.UpdateStatusIfNotTerminal(ctx, tx, p.ID, model.PaymentStatusFailed, "", reason, nil)
		if err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		if !won {
			metrics.IncReconcileEvent("duplicate")
			return nil
		}
		metrics.IncReconcileEvent("applied")
		metrics.IncPayment(string(model.PaymentStatusFailed))
		u.log.Info().Str("order_id", p.OrderID).Str("reason", reason).Msg("payment failed")
		_, err = u.enqueueNotification(ctx, tx, model.NotifyPaymentFailed, p, map[string]any{
			"order_id": p.OrderID,
			"amount":   p.Amount,
			"currency": p.Currency,
			"reason":   reason,
		})
		return err
	})
}

// applyCompletion transitions the payment to completed and runs the
// downstream effects. The conditional status update is the idempotency
// boundary: losing it to a concurrent delivery is success, not an error. A
// redelivery that finds the payment already completed still re-runs the
// downstream steps, which converges any earlier partial failure.
func (u *reconcileUC) applyCompletion(ctx context.Context, p *model.Payment, ev *model.CanonicalEvent) error {
	now := time.Now()
	won, err := u.payments.UpdateStatusIfNotTerminal(ctx, nil, p.ID, model.PaymentStatusCompleted, ev.TxnID, "", &now)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if !won {
		cur, err := u.payments.FindByID(ctx, nil, p.ID)
		if err != nil {
			return fmt.Errorf("refetch payment: %w", err)
		}
		if cur.Status != model.PaymentStatusCompleted {
			// Another actor closed this payment as failed/cancelled first;
			// terminal state is absorbing.
			metrics.IncReconcileEvent("duplicate")
			return nil
		}
		metrics.IncReconcileEvent("recovered")
		return u.applyDownstream(ctx, cur)
	}

	metrics.IncReconcileEvent("applied")
	metrics.IncPayment(string(model.PaymentStatusCompleted))
	p.Status = model.PaymentStatusCompleted
	p.TxnID = ev.TxnID
	p.CompletedAt = &now
	return u.applyDownstream(ctx, p)
}

// applyDownstream runs the three effects of a completed payment: activate or
// renew the subscription, flip the account, compose the invoice. Every step
// is re-entrant so a redelivered event resumes where a partial failure
// stopped. The invoice back-link is the last step, so a set InvoiceID means
// everything before it committed.
func (u *reconcileUC) applyDownstream(ctx context.Context, p *model.Payment) error {
	// By payment, not by order: a renewal checkout rotates the
	// subscription's OrderID, which must not strand redeliveries of the
	// previous order's event.
	if p.InvoiceID != nil {
		// The back-link commits last, so this payment's chain is fully
		// applied; nothing left to converge.
		return nil
	}

	sub, err := u.subs.FindByID(ctx, nil, p.SubscriptionID)
	if err != nil {
		return fmt.Errorf("find subscription %s: %w", p.SubscriptionID, err)
	}

	now := time.Now()
	startAt := now
	if sub.StartAt != nil {
		startAt = *sub.StartAt
	}
	endAt := sub.NextPeriodEnd(now)

	// Keyed by order id: a second application of the same order is a no-op,
	// so redelivery cannot double-extend the period.
	extended, err := u.subs.MarkPaid(ctx, nil, sub.ID, p.OrderID, startAt, endAt, endAt)
	if err != nil {
		return fmt.Errorf("activate subscription: %w", err)
	}
	if extended {
		u.log.Info().Str("subscription_id", sub.ID).Time("end_at", endAt).Msg("subscription activated/renewed")
	}

	// One active subscription per account: paying for a new plan supersedes
	// the previous one.
	if n, err := u.subs.SupersedeOthers(ctx, nil, sub.AccountID, sub.ID, "superseded by new plan"); err != nil {
		return fmt.Errorf("supersede subscriptions: %w", err)
	} else if n > 0 {
		u.log.Info().Str("account_id", sub.AccountID).Int("cancelled", n).Msg("previous subscriptions superseded")
	}

	if _, err := u.accounts.UpdateStatusIf(ctx, nil, p.AccountID, model.AccountStatusActive, model.AccountStatusPending); err != nil {
		return fmt.Errorf("activate account: %w", err)
	}
	if err := u.accounts.SetCurrentPlan(ctx, nil, p.AccountID, sub.PlanID); err != nil {
		return fmt.Errorf("set current plan: %w", err)
	}

	inv, _, err := u.invoices.ComposeForPayment(ctx, p, sub)
	if err != nil {
		// Payment stays completed; the next delivery or poll re-enters here.
		return fmt.Errorf("compose invoice: %w", err)
	}

	// The deterministic notification id is the once-only gate for the ledger
	// effects: whichever re-run inserts the row also commits the totals bump,
	// every other run sees the conflict and skips both.
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		inserted, err := u.enqueueNotification(ctx, tx, model.NotifyPaymentCompleted, p, map[string]any{
			"order_id":       p.OrderID,
			"amount":         p.Amount,
			"currency":       p.Currency,
			"invoice_number": inv.Number,
			"period_end":     inv.PeriodEnd,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		if err := u.accounts.AddToTotalPayments(ctx, tx, p.AccountID, p.Amount); err != nil {
			return fmt.Errorf("bump total payments: %w", err)
		}
		metrics.AddPaymentRevenue(p.Currency, p.Amount)
		return nil
	})
	if err != nil {
		return err
	}

	if err := u.payments.SetInvoiceID(ctx, nil, p.ID, inv.ID); err != nil {
		return fmt.Errorf("link invoice: %w", err)
	}
	return nil
}

func (u *reconcileUC) PollOrderStatus(ctx context.Context, orderID string) (*model.Payment, error) {
	p, err := u.payments.FindByOrderID(ctx, nil, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnknownOrder
		}
		return nil, err
	}
	if p.Status.IsTerminal() {
		return p, nil
	}

	os, err := u.gateway.GetOrderStatus(ctx, orderID)
	if err != nil {
		// Gateway unreachable: return what we know.
		u.log.Warn().Err(err).Str("order_id", orderID).Msg("gateway status poll failed")
		return p, nil
	}
	st, ok := model.MapGatewayStatus(os.Status)
	if !ok {
		u.log.Warn().Str("order_id", orderID).Str("status", os.Status).Msg("gateway returned unknown status")
		return p, nil
	}

	// Polled state is first-party: it carries the same authority as a
	// verified webhook.
	ev := &model.CanonicalEvent{
		OrderID:    orderID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Status:     st,
		TxnID:      os.TxnID,
		ReceivedAt: time.Now(),
	}
	if err := u.ApplyPaymentEvent(ctx, ev); err != nil {
		return nil, err
	}
	return u.payments.FindByOrderID(ctx, nil, orderID)
}

// TimeoutSweep converges orders the gateway never confirmed. The payment
// record arbitrates the race with a late webhook: whoever wins its terminal
// transition dictates the outcome, and the loser's conditional writes all
// turn into no-ops.
func (u *reconcileUC) TimeoutSweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	stale, err := u.subs.ListPendingPaymentOlderThan(ctx, nil, time.Now().Add(-u.cutoff), 200)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return report, nil
		}
		return report, fmt.Errorf("list stale subscriptions: %w", err)
	}

	for _, sub := range stale {
		report.Examined++

		p, err := u.payments.FindByOrderID(ctx, nil, sub.OrderID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			u.log.Error().Err(err).Str("order_id", sub.OrderID).Msg("sweep: payment lookup failed")
			continue
		}

		if p != nil {
			wonPay, err := u.payments.UpdateStatusIfNotTerminal(ctx, nil, p.ID, model.PaymentStatusFailed, "", "payment timeout", nil)
			if err != nil {
				u.log.Error().Err(err).Str("order_id", sub.OrderID).Msg("sweep: payment fail failed")
				continue
			}
			if !wonPay {
				cur, err := u.payments.FindByID(ctx, nil, p.ID)
				if err == nil && cur.Status == model.PaymentStatusCompleted {
					// A late webhook settled this order first; leave it alone.
					report.Skipped++
					continue
				}
			} else {
				metrics.IncPayment(string(model.PaymentStatusFailed))
			}
		}

		wonSub, err := u.subs.UpdateStatusIf(ctx, nil, sub.ID, model.SubscriptionStatusFailed, "payment timeout", model.SubscriptionStatusPendingPayment)
		if err != nil {
			u.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("sweep: subscription fail failed")
			continue
		}
		if !wonSub {
			report.Skipped++
			continue
		}
		report.Failed++

		// Revert only an optimistically-activated account that never
		// confirmed; the conditional write is a no-op otherwise.
		wonAcc, err := u.accounts.UpdateStatusIf(ctx, nil, sub.AccountID, model.AccountStatusPending, model.AccountStatusActive)
		if err != nil {
			u.log.Error().Err(err).Str("account_id", sub.AccountID).Msg("sweep: account revert failed")
		} else if wonAcc {
			report.Reverted++
		}

		if p != nil {
			if _, err := u.enqueueNotification(ctx, nil, model.NotifyPaymentTimeout, p, map[string]any{
				"order_id": p.OrderID,
				"amount":   p.Amount,
				"currency": p.Currency,
				"plan_id":  sub.PlanID,
			}); err != nil {
				u.log.Error().Err(err).Str("order_id", p.OrderID).Msg("sweep: notification enqueue failed")
			}
		}
	}
	return report, nil
}

// enqueueNotification writes the outbox row under a deterministic id
// (kind:orderID), so redeliveries and recovery re-runs can never announce the
// same transition twice.
func (u *reconcileUC) enqueueNotification(ctx context.Context, tx repository.Tx, kind model.NotificationKind, p *model.Payment, payload map[string]any) (bool, error) {
	acc, err := u.accounts.FindByID(ctx, tx, p.AccountID)
	if err != nil {
		return false, fmt.Errorf("find account for notification: %w", err)
	}
	return u.outbox.Enqueue(ctx, tx, &model.OutboxMessage{
		ID:        string(kind) + ":" + p.OrderID,
		Kind:      kind,
		Recipient: acc.Email,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
}
