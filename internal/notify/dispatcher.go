package notify

import (
	"context"

	"go.uber.org/multierr"
)

// Recipients каналы доставки одного уведомления
type Recipients struct {
	FcmTokens []string
	Emails    []string
}

// Dispatcher отправляет уведомление по всем переданным каналам
type Dispatcher interface {
	Send(ctx context.Context, recipients Recipients, title, body string) error
}

// Multi рассылает уведомление через несколько диспетчеров. Ошибки
// каналов накапливаются, остальные каналы при этом не пропускаются.
type Multi struct {
	dispatchers []Dispatcher
}

func NewMulti(dispatchers ...Dispatcher) *Multi {
	return &Multi{dispatchers: dispatchers}
}

func (m *Multi) Send(ctx context.Context, recipients Recipients, title, body string) error {
	var errs error
	for _, d := range m.dispatchers {
		errs = multierr.Append(errs, d.Send(ctx, recipients, title, body))
	}
	return errs
}
