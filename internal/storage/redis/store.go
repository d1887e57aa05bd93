package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/domain/models"
	storageErrors "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/errors/storage"
)

const (
	activeKeyPrefix = "orders:active:"
	eventsKeyPrefix = "orders:events:"
)

// Store держит активные ордера в redis: ордер в строковом ключе,
// лог событий в списке. Оба ключа живут и истекают вместе.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

func (s *Store) PutOrder(ctx context.Context, order models.Order, ttl time.Duration) error {
	const op = "redis.Store.PutOrder"

	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, activeKey(order.ID), payload, ttl)
	pipe.Expire(ctx, eventsKey(order.ID), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: exec: %w", op, err)
	}

	return nil
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (models.Order, error) {
	const op = "redis.Store.GetOrder"

	payload, err := s.client.Get(ctx, activeKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Order{}, fmt.Errorf("%s: %w", op, storageErrors.ErrOrderNotFound)
		}

		return models.Order{}, fmt.Errorf("%s: get: %w", op, err)
	}

	var order models.Order
	if err := json.Unmarshal(payload, &order); err != nil {
		return models.Order{}, fmt.Errorf("%s: unmarshal: %w", op, err)
	}

	return order, nil
}

func (s *Store) AppendEvent(ctx context.Context, id uuid.UUID, event models.OrderEvent, ttl time.Duration) error {
	const op = "redis.Store.AppendEvent"

	exists, err := s.client.Exists(ctx, activeKey(id)).Result()
	if err != nil {
		return fmt.Errorf("%s: exists: %w", op, err)
	}
	if exists == 0 {
		return fmt.Errorf("%s: %w", op, storageErrors.ErrOrderNotFound)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, eventsKey(id), payload)
	pipe.Expire(ctx, eventsKey(id), ttl)
	pipe.Expire(ctx, activeKey(id), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: exec: %w", op, err)
	}

	return nil
}

func (s *Store) ListEvents(ctx context.Context, id uuid.UUID) ([]models.OrderEvent, error) {
	const op = "redis.Store.ListEvents"

	values, err := s.client.LRange(ctx, eventsKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: lrange: %w", op, err)
	}

	if len(values) == 0 {
		return nil, nil
	}

	events := make([]models.OrderEvent, 0, len(values))
	for _, value := range values {
		var event models.OrderEvent
		if err := json.Unmarshal([]byte(value), &event); err != nil {
			return nil, fmt.Errorf("%s: unmarshal: %w", op, err)
		}
		events = append(events, event)
	}

	return events, nil
}

func (s *Store) Clear(ctx context.Context, id uuid.UUID) error {
	const op = "redis.Store.Clear"

	if err := s.client.Del(ctx, activeKey(id), eventsKey(id)).Err(); err != nil {
		return fmt.Errorf("%s: del: %w", op, err)
	}

	return nil
}

func activeKey(id uuid.UUID) string {
	return activeKeyPrefix + id.String()
}

func eventsKey(id uuid.UUID) string {
	return eventsKeyPrefix + id.String()
}
