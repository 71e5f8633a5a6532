package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/ports/repository"
)

var _ repository.AuditQueries = (*auditQueries)(nil)

type auditQueries struct{ pool *pgxpool.Pool }

func NewAuditQueries(pool *pgxpool.Pool) *auditQueries {
	return &auditQueries{pool: pool}
}

// SumLedger reads the three money projections in one round trip.
func (r *auditQueries) SumLedger(ctx context.Context, tx repository.Tx) (repository.LedgerSums, error) {
	const q = `
SELECT
  COALESCE((SELECT SUM(paid_amount) FROM invoices), 0),
  COALESCE((SELECT SUM(amount) FROM payments WHERE status = 'completed'), 0),
  COALESCE((SELECT SUM(total_payments) FROM accounts), 0);`

	row, err := pickRow(ctx, r.pool, tx, q)
	if err != nil {
		return repository.LedgerSums{}, err
	}
	var sums repository.LedgerSums
	if err := row.Scan(&sums.InvoicePaid, &sums.CompletedPayments, &sums.AccountTotals); err != nil {
		return repository.LedgerSums{}, domain.ErrReadDatabaseRow
	}
	return sums, nil
}

// SumLedgerByAccount is the drill-down used when the global sums diverge.
func (r *auditQueries) SumLedgerByAccount(ctx context.Context, tx repository.Tx) (map[string]repository.LedgerSums, error) {
	const q = `
SELECT a.id,
  COALESCE(i.paid, 0),
  COALESCE(p.completed, 0),
  a.total_payments
FROM accounts a
LEFT JOIN (SELECT account_id, SUM(paid_amount) AS paid FROM invoices GROUP BY account_id) i ON i.account_id = a.id
LEFT JOIN (SELECT account_id, SUM(amount) AS completed FROM payments WHERE status = 'completed' GROUP BY account_id) p ON p.account_id = a.id;`

	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	out := make(map[string]repository.LedgerSums)
	for rows.Next() {
		var id string
		var sums repository.LedgerSums
		if err := rows.Scan(&id, &sums.InvoicePaid, &sums.CompletedPayments, &sums.AccountTotals); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[id] = sums
	}
	return out, nil
}
