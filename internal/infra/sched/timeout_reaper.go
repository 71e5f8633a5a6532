package sched

import (
	"context"
	"time"

	"saas-billing/internal/infra/metrics"
	"saas-billing/internal/usecase"

	"github.com/rs/zerolog"
)

// TimeoutReaper periodically fails payments stuck in pending past the cutoff
// via the reconcile use case.
type TimeoutReaper struct {
	interval time.Duration
	recUC    usecase.ReconcileUseCase
	log      *zerolog.Logger
}

func NewTimeoutReaper(interval time.Duration, recUC usecase.ReconcileUseCase, logger *zerolog.Logger) *TimeoutReaper {
	reapLog := logger.With().Str("component", "TimeoutReaper").Logger()
	return &TimeoutReaper{
		interval: interval,
		recUC:    recUC,
		log:      &reapLog,
	}
}

func (w *TimeoutReaper) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting timeout reaper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping timeout reaper")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *TimeoutReaper) sweep(ctx context.Context) {
	report, err := w.recUC.TimeoutSweep(ctx)
	metrics.IncReaperSweep()
	if err != nil {
		w.log.Error().Err(err).Msg("timeout sweep error")
	}
	if report.Failed > 0 {
		metrics.AddReaperFailed(report.Failed)
	}
	if report.Reverted > 0 {
		metrics.AddReaperReverted(report.Reverted)
	}
	if report.Examined > 0 {
		w.log.Info().
			Int("examined", report.Examined).
			Int("failed", report.Failed).
			Int("reverted", report.Reverted).
			Int("skipped", report.Skipped).
			Msg("timeout sweep finished")
	}
}
