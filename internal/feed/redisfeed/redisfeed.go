package redisfeed

import (
	"context"
	"fmt"

	"github.com/UjenziPro/HaulTrack/internal/feed"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisFeed реализует change-feed на pub/sub: один канал на доставку.
// Фильтрация по delivery id происходит на сервере (имя канала), подписчик
// получает только свои вставки.
type RedisFeed struct {
	c *redis.Client
}

func New(addr string) *RedisFeed {
	return &RedisFeed{
		c: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func channelName(deliveryID uint64) string {
	return fmt.Sprintf("delivery:%d:samples", deliveryID)
}

func (f *RedisFeed) Publish(ctx context.Context, deliveryID uint64, payload []byte) error {
	if err := f.c.Publish(ctx, channelName(deliveryID), payload).Err(); err != nil {
		return errors.Wrap(err, "feed publish")
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context, deliveryID uint64) (feed.Subscription, error) {
	ps := f.c.Subscribe(ctx, channelName(deliveryID))
	// Дожидаемся подтверждения подписки, чтобы после возврата не терять вставки.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrap(err, "feed subscribe")
	}

	out := make(chan []byte)
	sub := &subscription{ps: ps, out: out}
	go sub.pump()
	return sub, nil
}

type subscription struct {
	ps  *redis.PubSub
	out chan []byte
}

func (s *subscription) pump() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		s.out <- []byte(msg.Payload)
	}
}

func (s *subscription) Events() <-chan []byte {
	return s.out
}

func (s *subscription) Close() error {
	return s.ps.Close()
}
