package repository

import "context"

// LedgerSums are the three independently-maintained projections of money
// received. At any quiescent point they must agree.
type LedgerSums struct {
	InvoicePaid       int64 // sum of invoices.paid_amount
	CompletedPayments int64 // sum of payments.amount where status = completed
	AccountTotals     int64 // sum of accounts.total_payments
}

// AuditQueries is the read-only port the audit reconciler runs on.
type AuditQueries interface {
	SumLedger(ctx context.Context, tx Tx) (LedgerSums, error)
	SumLedgerByAccount(ctx context.Context, tx Tx) (map[string]LedgerSums, error)
}
