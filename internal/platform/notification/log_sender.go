package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender writes outbound messages to the application log instead of a real
// delivery provider. It is the default sender when no SMTP or SMS gateway is
// configured.
type LogSender struct {
	logger zerolog.Logger
	from   string
}

// NewLogSender creates a LogSender that logs with the given from address.
func NewLogSender(logger zerolog.Logger, from string) *LogSender {
	return &LogSender{logger: logger, from: from}
}

func (s *LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.logger.Info().
		Str("channel", "email").
		Str("from", s.from).
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("notification")
	return nil
}

func (s *LogSender) SendSMS(_ context.Context, to, body string) error {
	s.logger.Info().
		Str("channel", "sms").
		Str("to", to).
		Str("body", body).
		Msg("notification")
	return nil
}
