package notify

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// FcmDispatcher отправляет push-уведомления через Firebase Cloud
// Messaging. Отправка по токену ретраится с экспоненциальной паузой;
// невалидный токен не валит рассылку по остальным.
type FcmDispatcher struct {
	client *messaging.Client
	logger *zap.Logger
}

func NewFcmDispatcher(ctx context.Context, credentialsPath string, logger *zap.Logger) (*FcmDispatcher, error) {
	opt := option.WithCredentialsFile(credentialsPath)

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init fcm client: %w", err)
	}

	return &FcmDispatcher{client: client, logger: logger}, nil
}

func (d *FcmDispatcher) Send(ctx context.Context, recipients Recipients, title, body string) error {
	for _, token := range recipients.FcmTokens {
		msg := &messaging.Message{
			Token: token,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
		}

		backoff := retry.WithMaxRetries(3, retry.NewExponential(time.Second))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if _, err := d.client.Send(ctx, msg); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			d.logger.Warn("Failed to send FCM message", zap.Error(err))
		}
	}

	return nil
}
