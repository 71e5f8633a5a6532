package notify

import (
	"context"

	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.NotificationSink = (*LogSink)(nil)

// LogSink writes notifications to the log instead of sending mail. Used in
// dev mode where no SMTP relay is configured.
type LogSink struct {
	log *zerolog.Logger
}

func NewLogSink(logger *zerolog.Logger) *LogSink {
	sinkLog := logger.With().Str("component", "LogSink").Logger()
	return &LogSink{log: &sinkLog}
}

func (s *LogSink) Notify(ctx context.Context, kind model.NotificationKind, recipient string, payload map[string]any) error {
	s.log.Info().
		Str("kind", string(kind)).
		Str("recipient", recipient).
		Interface("payload", payload).
		Msg("notification")
	return nil
}
