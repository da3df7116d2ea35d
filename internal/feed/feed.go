package feed

import "context"

// Feed — push-канал "новая строка журнала" с серверной фильтрацией по доставке.
// Подписка — это захваченный ресурс: кто открыл, тот и обязан закрыть
// (на каждом пути выхода), иначе каналы копятся без ограничения.
type Feed interface {
	Publish(ctx context.Context, deliveryID uint64, payload []byte) error
	Subscribe(ctx context.Context, deliveryID uint64) (Subscription, error)
}

type Subscription interface {
	// Events closes when the subscription is closed.
	Events() <-chan []byte
	Close() error
}
