// File: internal/usecase/audit_uc.go
package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"saas-billing/internal/domain/ports/repository"
	"saas-billing/internal/infra/metrics"
)

// Compile-time check
var _ AuditUseCase = (*auditUC)(nil)

// AuditUseCase recomputes ledger totals from three independent projections
// and reports divergence. Detection only; repairs are a separate,
// explicitly-audited operation.
type AuditUseCase interface {
	Run(ctx context.Context) (*AuditReport, error)
}

// AccountDivergence is the per-tenant drill-down for a divergent ledger.
type AccountDivergence struct {
	AccountID string               `json:"account_id"`
	Sums      repository.LedgerSums `json:"sums"`
}

type AuditReport struct {
	Consistent bool                  `json:"consistent"`
	Sums       repository.LedgerSums `json:"sums"`
	// MaxDrift is the largest absolute pairwise disagreement found.
	MaxDrift int64               `json:"max_drift"`
	Diverged []AccountDivergence `json:"diverged,omitempty"`
}

type auditUC struct {
	queries repository.AuditQueries
	epsilon int64
	log     *zerolog.Logger
}

func NewAuditUseCase(queries repository.AuditQueries, epsilon int64, logger *zerolog.Logger) *auditUC {
	alog := logger.With().Str("component", "AuditUC").Logger()
	return &auditUC{queries: queries, epsilon: epsilon, log: &alog}
}

func (u *auditUC) Run(ctx context.Context) (*AuditReport, error) {
	sums, err := u.queries.SumLedger(ctx, nil)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{Sums: sums, MaxDrift: maxDrift(sums)}
	report.Consistent = report.MaxDrift <= u.epsilon
	metrics.SetAuditDivergence(report.MaxDrift)

	if report.Consistent {
		metrics.IncAuditRun("consistent")
		u.log.Info().Int64("invoice_paid", sums.InvoicePaid).Int64("completed_payments", sums.CompletedPayments).
			Int64("account_totals", sums.AccountTotals).Msg("ledger consistent")
		return report, nil
	}

	metrics.IncAuditRun("divergent")
	perAccount, err := u.queries.SumLedgerByAccount(ctx, nil)
	if err != nil {
		return nil, err
	}
	for id, s := range perAccount {
		if maxDrift(s) > u.epsilon {
			report.Diverged = append(report.Diverged, AccountDivergence{AccountID: id, Sums: s})
		}
	}
	u.log.Error().Int64("max_drift", report.MaxDrift).Int("diverged_accounts", len(report.Diverged)).
		Msg("ledger divergence detected")
	return report, nil
}

func maxDrift(s repository.LedgerSums) int64 {
	d := absDiff(s.InvoicePaid, s.CompletedPayments)
	if v := absDiff(s.CompletedPayments, s.AccountTotals); v > d {
		d = v
	}
	if v := absDiff(s.InvoicePaid, s.AccountTotals); v > d {
		d = v
	}
	return d
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
