package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/domain/models"
	busErrors "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/errors/bus"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/pkg/logger"
)

const channelPrefix = "orders:lifecycle:"

// Bus рассылает события через redis Pub/Sub, по каналу на ордер.
// Для подписчика поведение совпадает с внутрипроцессной шиной:
// буферизованная доставка в порядке публикации, потери при переполнении.
type Bus struct {
	client *redis.Client

	mu     sync.Mutex
	closed bool
	nextID int64
	subs   map[int64]*redis.PubSub
}

func NewBus(client *redis.Client) *Bus {
	return &Bus{
		client: client,
		subs:   make(map[int64]*redis.PubSub),
	}
}

func (b *Bus) Publish(ctx context.Context, orderID uuid.UUID, event models.OrderEvent) error {
	const op = "redis.Bus.Publish"

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()

	if closed {
		return fmt.Errorf("%s: %w", op, busErrors.ErrBusClosed)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}

	if err := b.client.Publish(ctx, channelName(orderID), payload).Err(); err != nil {
		return fmt.Errorf("%s: publish: %w", op, err)
	}

	return nil
}

func (b *Bus) Subscribe(ctx context.Context, orderID uuid.UUID, handler func(event models.OrderEvent)) (func(), error) {
	const op = "redis.Bus.Subscribe"

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", op, busErrors.ErrBusClosed)
	}
	b.mu.Unlock()

	pubsub := b.client.Subscribe(ctx, channelName(orderID))

	// Дожидаемся подтверждения подписки: после возврата ни одна
	// последующая публикация не может пройти мимо подписчика.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%s: receive: %w", op, err)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = pubsub.Close()
		return nil, fmt.Errorf("%s: %w", op, busErrors.ErrBusClosed)
	}
	b.nextID++
	id := b.nextID
	b.subs[id] = pubsub
	b.mu.Unlock()

	go func() {
		for message := range pubsub.Channel() {
			var event models.OrderEvent
			if err := json.Unmarshal([]byte(message.Payload), &event); err != nil {
				logger.Warn(context.Background(), "malformed lifecycle event dropped",
					zap.String("channel", message.Channel),
					zap.Error(err),
				)
				continue
			}
			handler(event)
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()

			if err := pubsub.Close(); err != nil {
				logger.Warn(context.Background(), "pubsub close failed",
					zap.String("order_id", orderID.String()),
					zap.Error(err),
				)
			}
		})
	}

	return unsubscribe, nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for id, pubsub := range b.subs {
		_ = pubsub.Close()
		delete(b.subs, id)
	}

	return nil
}

func channelName(orderID uuid.UUID) string {
	return channelPrefix + orderID.String()
}
