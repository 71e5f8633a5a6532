package repository

import (
	"context"

	"saas-billing/internal/domain/model"
)

// OutboxRepository stores pending notifications. Enqueue runs inside the same
// transaction scope as the state transition it announces, so a committed
// transition always has its notification row and an aborted one never does.
// Message ids are deterministic per transition, which makes Enqueue the
// idempotency gate for the ledger effects committed alongside it: inserted
// reports whether this call created the row.
type OutboxRepository interface {
	Enqueue(ctx context.Context, tx Tx, msg *model.OutboxMessage) (inserted bool, err error)
	// ClaimUndelivered atomically bumps the attempt count of the oldest
	// pending rows and returns them, so a row is never handed to two
	// dispatcher drains in the same attempt.
	ClaimUndelivered(ctx context.Context, tx Tx, maxAttempts, limit int) ([]*model.OutboxMessage, error)
	MarkDelivered(ctx context.Context, tx Tx, id string) error
}

// WebhookEventRepository is the durable receipt log for inbound gateway
// deliveries, kept raw for operator inspection of signature drift.
type WebhookEventRepository interface {
	Record(ctx context.Context, tx Tx, id, orderID string, payload []byte, verified bool) error
}
