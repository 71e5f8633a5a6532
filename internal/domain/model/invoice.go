package model

import (
	"time"

	"saas-billing/internal/domain"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusPartial   InvoiceStatus = "partial"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

type LineItem struct {
	Description string
	Quantity    int64
	UnitAmount  int64 // minor units
	Amount      int64 // quantity * unit amount
}

// PaymentApplication records money applied to an invoice. Partial payments
// append to the same invoice.
type PaymentApplication struct {
	PaymentID string
	Amount    int64
	AppliedAt time.Time
}

// Invoice is an immutable record of what was billed for a subscription
// period. Amounts are frozen at composition; only payment application may
// mutate paid/due totals afterwards.
type Invoice struct {
	ID             string // UUID
	Number         string // e.g. INV-202608-000042; unique, monotonic per period
	AccountID      string
	SubscriptionID string
	PaymentID      string // originating payment
	LineItems      []LineItem
	Subtotal       int64
	TaxAmount      int64
	DiscountAmount int64
	TotalAmount    int64
	PaidAmount     int64
	DueAmount      int64
	Status         InvoiceStatus
	Applications   []PaymentApplication
	PeriodStart    time.Time
	PeriodEnd      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewInvoice validates the invoice arithmetic invariant:
//
//	totalAmount == subtotal + taxAmount - discountAmount
//	dueAmount   == totalAmount - paidAmount
//
// both non-negative. The caller supplies line items; subtotal is derived.
func NewInvoice(id, number, accountID, subscriptionID, paymentID string, items []LineItem, taxAmount, discountAmount int64, periodStart, periodEnd time.Time) (*Invoice, error) {
	if id == "" || number == "" || accountID == "" || paymentID == "" || len(items) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	if taxAmount < 0 || discountAmount < 0 {
		return nil, domain.ErrInvalidArgument
	}
	var subtotal int64
	for _, it := range items {
		if it.Quantity <= 0 || it.UnitAmount < 0 || it.Amount != it.Quantity*it.UnitAmount {
			return nil, domain.ErrInvalidArgument
		}
		subtotal += it.Amount
	}
	total := subtotal + taxAmount - discountAmount
	if total < 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Invoice{
		ID:             id,
		Number:         number,
		AccountID:      accountID,
		SubscriptionID: subscriptionID,
		PaymentID:      paymentID,
		LineItems:      items,
		Subtotal:       subtotal,
		TaxAmount:      taxAmount,
		DiscountAmount: discountAmount,
		TotalAmount:    total,
		PaidAmount:     0,
		DueAmount:      total,
		Status:         InvoiceStatusDraft,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ApplyPayment records money against the invoice and moves it to paid or
// partial. Applying the same payment twice is rejected so redelivered events
// cannot inflate PaidAmount.
func (inv *Invoice) ApplyPayment(paymentID string, amount int64, at time.Time) error {
	if paymentID == "" || amount <= 0 {
		return domain.ErrInvalidArgument
	}
	for _, a := range inv.Applications {
		if a.PaymentID == paymentID {
			return domain.ErrAlreadyExists
		}
	}
	if amount > inv.DueAmount {
		amount = inv.DueAmount
	}
	inv.Applications = append(inv.Applications, PaymentApplication{PaymentID: paymentID, Amount: amount, AppliedAt: at})
	inv.PaidAmount += amount
	inv.DueAmount = inv.TotalAmount - inv.PaidAmount
	if inv.DueAmount == 0 {
		inv.Status = InvoiceStatusPaid
	} else {
		inv.Status = InvoiceStatusPartial
	}
	inv.UpdatedAt = at
	return nil
}
