package mailer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogTransport writes sends to the log instead of emailing anyone. Used in
// development and as the fallback when no provider is configured.
type LogTransport struct {
	logger *slog.Logger
}

func NewLogTransport(logger *slog.Logger) *LogTransport {
	return &LogTransport{logger: logger.With("component", "mailer")}
}

func (t *LogTransport) Send(ctx context.Context, msg *Message) (*Result, error) {
	id := uuid.New().String()
	t.logger.Info("email send (log transport)",
		"id", id,
		"to", msg.To,
		"subject", msg.Subject,
	)
	return &Result{OK: true, ID: id, Provider: "log", Status: "sent"}, nil
}
