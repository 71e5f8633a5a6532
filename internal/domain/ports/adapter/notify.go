package adapter

import (
	"context"

	"saas-billing/internal/domain/model"
)

// NotificationSink delivers a single notification. Fire-and-forget from the
// core's point of view: failures are logged and retried by the outbox
// dispatcher, never by the state machine, and never on the webhook path.
type NotificationSink interface {
	Notify(ctx context.Context, kind model.NotificationKind, recipient string, payload map[string]any) error
}
