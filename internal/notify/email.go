package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// EmailDispatcher отправляет уведомления по SMTP
type EmailDispatcher struct {
	client *mail.Client
	from   string
	logger *zap.Logger
}

func NewEmailDispatcher(host string, port int, user, password, from string, logger *zap.Logger) (*EmailDispatcher, error) {
	client, err := mail.NewClient(host,
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(user),
		mail.WithPassword(password),
	)
	if err != nil {
		return nil, fmt.Errorf("init smtp client: %w", err)
	}

	return &EmailDispatcher{client: client, from: from, logger: logger}, nil
}

func (d *EmailDispatcher) Send(ctx context.Context, recipients Recipients, title, body string) error {
	for _, addr := range recipients.Emails {
		msg := mail.NewMsg()
		if err := msg.From(d.from); err != nil {
			return fmt.Errorf("set email sender: %w", err)
		}
		if err := msg.To(addr); err != nil {
			d.logger.Warn("Invalid email recipient", zap.String("email", addr), zap.Error(err))
			continue
		}

		msg.Subject(title)
		msg.SetBodyString(mail.TypeTextPlain, body)

		if err := d.client.DialAndSendWithContext(ctx, msg); err != nil {
			return fmt.Errorf("send email: %w", err)
		}
	}

	return nil
}
