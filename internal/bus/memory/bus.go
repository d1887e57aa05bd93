package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/domain/models"
	busErrors "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/errors/bus"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/pkg/logger"
)

const subscriberBuffer = 256

// Bus доставляет события внутри одного процесса. У каждого подписчика
// свой буфер и своя горутина доставки, поэтому publish никогда не
// блокируется медленным обработчиком; переполненный буфер роняет
// событие для этого подписчика (историю восстановит хранилище).
type Bus struct {
	mu          sync.RWMutex
	closed      bool
	nextID      int64
	subscribers map[uuid.UUID]map[int64]*subscriber
}

type subscriber struct {
	events   chan models.OrderEvent
	quit     chan struct{}
	quitOnce sync.Once
}

func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[uuid.UUID]map[int64]*subscriber),
	}
}

func (b *Bus) Publish(ctx context.Context, orderID uuid.UUID, event models.OrderEvent) error {
	const op = "memory.Bus.Publish"

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("%s: %w", op, busErrors.ErrBusClosed)
	}

	targets := make([]*subscriber, 0, len(b.subscribers[orderID]))
	for _, sub := range b.subscribers[orderID] {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.events <- event:
		default:
			logger.Warn(ctx, "subscriber buffer full, dropping event",
				zap.String("order_id", orderID.String()),
				zap.String("status", string(event.Status)),
			)
		}
	}

	return nil
}

func (b *Bus) Subscribe(ctx context.Context, orderID uuid.UUID, handler func(event models.OrderEvent)) (func(), error) {
	const op = "memory.Bus.Subscribe"

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", op, busErrors.ErrBusClosed)
	}

	b.nextID++
	id := b.nextID

	sub := &subscriber{
		events: make(chan models.OrderEvent, subscriberBuffer),
		quit:   make(chan struct{}),
	}

	if b.subscribers[orderID] == nil {
		b.subscribers[orderID] = make(map[int64]*subscriber)
	}
	b.subscribers[orderID][id] = sub
	b.mu.Unlock()

	go sub.dispatch(handler)

	unsubscribe := func() {
		b.mu.Lock()
		if subs, found := b.subscribers[orderID]; found {
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.subscribers, orderID)
			}
		}
		b.mu.Unlock()

		sub.quitOnce.Do(func() {
			close(sub.quit)
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

	for _, subs := range b.subscribers {
		for _, sub := range subs {
			sub.quitOnce.Do(func() {
				close(sub.quit)
			})
		}
	}
	b.subscribers = make(map[uuid.UUID]map[int64]*subscriber)

	return nil
}

// dispatch доставляет события по одному, сохраняя порядок публикации
// для этого подписчика.
func (s *subscriber) dispatch(handler func(event models.OrderEvent)) {
	for {
		select {
		case event := <-s.events:
			handler(event)
		case <-s.quit:
			return
		}
	}
}
