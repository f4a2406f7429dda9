//go:generate mockgen -source ./notifier.go -destination=./mocks/notifier.go -package=mock_notify
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Message is one outbound notification email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers a single message synchronously. Implementations:
// SMTPNotifier for real delivery, LogNotifier when no SMTP host is
// configured.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes the message to the log instead of sending it. Used
// in development setups without SMTP credentials.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.log.Info("mail (log only)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
