package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4/pgxpool"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

var _ repository.OutboxRepository = (*outboxRepo)(nil)

type outboxRepo struct{ pool *pgxpool.Pool }

func NewOutboxRepo(pool *pgxpool.Pool) *outboxRepo {
	return &outboxRepo{pool: pool}
}

func (r *outboxRepo) Enqueue(ctx context.Context, tx repository.Tx, msg *model.OutboxMessage) (bool, error) {
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return false, domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO outbox_messages (id, kind, recipient, payload, attempts, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO NOTHING;`

	cmd, err := execSQL(ctx, r.pool, tx, q, msg.ID, msg.Kind, msg.Recipient, payload, msg.Attempts, msg.CreatedAt)
	if err != nil {
		return false, storeErr(err)
	}
	return cmd.RowsAffected() > 0, nil
}

// ClaimUndelivered bumps attempts and returns the claimed rows in one
// statement. The claim survives the statement (unlike a bare SELECT ... FOR
// UPDATE in autocommit, whose locks release on return), so two drains cannot
// pick up the same row for the same attempt.
func (r *outboxRepo) ClaimUndelivered(ctx context.Context, tx repository.Tx, maxAttempts, limit int) ([]*model.OutboxMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
UPDATE outbox_messages SET attempts = attempts + 1
WHERE id IN (
	SELECT id FROM outbox_messages
	WHERE sent_at IS NULL AND attempts < $1
	ORDER BY created_at
	LIMIT $2
	FOR UPDATE SKIP LOCKED
)
RETURNING id, kind, recipient, payload, attempts, created_at, sent_at;`

	rows, err := queryRows(ctx, r.pool, tx, q, maxAttempts, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []*model.OutboxMessage
	for rows.Next() {
		msg := &model.OutboxMessage{}
		var payload []byte
		if err := rows.Scan(&msg.ID, &msg.Kind, &msg.Recipient, &payload, &msg.Attempts, &msg.CreatedAt, &msg.SentAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &msg.Payload); err != nil {
				return nil, domain.ErrReadDatabaseRow
			}
		}
		out = append(out, msg)
	}
	return out, nil
}

func (r *outboxRepo) MarkDelivered(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE outbox_messages SET sent_at = NOW() WHERE id = $1 AND sent_at IS NULL;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return storeErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ repository.WebhookEventRepository = (*webhookEventRepo)(nil)

type webhookEventRepo struct{ pool *pgxpool.Pool }

func NewWebhookEventRepo(pool *pgxpool.Pool) *webhookEventRepo {
	return &webhookEventRepo{pool: pool}
}

// Record keeps the raw delivery. Duplicate ids are tolerated since gateways
// redeliver the same event.
func (r *webhookEventRepo) Record(ctx context.Context, tx repository.Tx, id, orderID string, payload []byte, verified bool) error {
	const q = `
INSERT INTO webhook_events (id, order_id, payload, verified, received_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (id) DO NOTHING;`

	_, err := execSQL(ctx, r.pool, tx, q, id, orderID, payload, verified)
	if err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		return storeErr(err)
	}
	return nil
}
