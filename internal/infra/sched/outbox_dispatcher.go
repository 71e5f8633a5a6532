package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/adapter"
	"saas-billing/internal/domain/ports/repository"
	"saas-billing/internal/infra/worker"

	"github.com/rs/zerolog"
)

// OutboxDispatcher drains pending notification rows and hands each to the
// sink on the worker pool. Delivery is at-least-once: a crash between Notify
// and MarkDelivered resends on the next tick. The claim in ClaimUndelivered
// guards against other processes; the in-flight set guards against this
// process re-submitting a row whose delivery is still on the pool.
type OutboxDispatcher struct {
	interval    time.Duration
	maxAttempts int
	batchSize   int
	outbox      repository.OutboxRepository
	sink        adapter.NotificationSink
	pool        *worker.Pool
	log         *zerolog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewOutboxDispatcher(interval time.Duration, maxAttempts int, outbox repository.OutboxRepository, sink adapter.NotificationSink, pool *worker.Pool, logger *zerolog.Logger) *OutboxDispatcher {
	dispLog := logger.With().Str("component", "OutboxDispatcher").Logger()
	return &OutboxDispatcher{
		interval:    interval,
		maxAttempts: maxAttempts,
		batchSize:   50,
		outbox:      outbox,
		sink:        sink,
		pool:        pool,
		log:         &dispLog,
		inflight:    make(map[string]struct{}),
	}
}

func (w *OutboxDispatcher) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting outbox dispatcher")
	// Drain once on startup, then on every tick
	w.drain(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping outbox dispatcher")
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *OutboxDispatcher) drain(ctx context.Context) {
	msgs, err := w.outbox.ClaimUndelivered(ctx, nil, w.maxAttempts, w.batchSize)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			w.log.Error().Err(err).Msg("claiming undelivered notifications failed")
		}
		return
	}
	for _, msg := range msgs {
		m := msg
		if !w.begin(m.ID) {
			continue
		}
		if err := w.pool.Submit(func(ctx context.Context) error {
			defer w.finish(m.ID)
			w.deliver(ctx, m)
			return nil
		}); err != nil {
			// queue saturated; the row stays pending for the next tick
			w.finish(m.ID)
			return
		}
	}
}

func (w *OutboxDispatcher) begin(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inflight[id]; busy {
		return false
	}
	w.inflight[id] = struct{}{}
	return true
}

func (w *OutboxDispatcher) finish(id string) {
	w.mu.Lock()
	delete(w.inflight, id)
	w.mu.Unlock()
}

func (w *OutboxDispatcher) deliver(ctx context.Context, msg *model.OutboxMessage) {
	if err := w.sink.Notify(ctx, msg.Kind, msg.Recipient, msg.Payload); err != nil {
		// attempts were already bumped on claim; the row stays for retry
		w.log.Warn().Err(err).Str("id", msg.ID).Str("kind", string(msg.Kind)).Msg("notification delivery failed")
		return
	}
	if err := w.outbox.MarkDelivered(ctx, nil, msg.ID); err != nil {
		w.log.Error().Err(err).Str("id", msg.ID).Msg("marking notification delivered failed")
	}
}
