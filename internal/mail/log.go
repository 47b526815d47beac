package mail

import (
	"context"

	"github.com/lacpa/lacpa-backend/internal/logging"
)

// LogMailer prints deliveries to the service log instead of sending them.
// Development only: the plaintext code ends up in the log.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(logger logging.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("component", "mail")}
}

func (m *LogMailer) Send(ctx context.Context, d Delivery) error {
	m.logger.Info(ctx, "verification code (log mailer)",
		"to", d.To,
		"purpose", d.Purpose,
		"code", d.Code,
		"expires_at", d.ExpiresAt,
	)
	return nil
}
