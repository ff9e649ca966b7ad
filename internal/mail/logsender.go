package mail

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"briefing_agent/internal/model"
)

// LogSender logs briefings instead of delivering them. Used when no SMTP
// server is configured, e.g. in development.
type LogSender struct {
	log *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the briefing and returns a synthetic receipt.
func (l *LogSender) Send(_ context.Context, to, subject, htmlBody string) (*model.DeliveryReceipt, error) {
	receipt := &model.DeliveryReceipt{
		MessageID: uuid.NewString(),
		To:        to,
		SentAt:    time.Now().UTC(),
	}
	l.log.Info("email delivery skipped (no SMTP configured)",
		"to", to,
		"subject", subject,
		"body_bytes", len(htmlBody),
		"message_id", receipt.MessageID,
	)
	return receipt, nil
}
