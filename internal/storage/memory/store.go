package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/domain/models"
	storageErrors "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/errors/storage"
)

const shardCount = 32

// Store хранит активные ордера в памяти процесса. Состояние каждого
// ордера защищено замком своего шарда, поэтому операции по разным
// ордерам не конкурируют за один мьютекс.
type Store struct {
	shards   [shardCount]*shard
	stop     chan struct{}
	stopOnce sync.Once
}

type shard struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
}

type entry struct {
	order     models.Order
	events    []models.OrderEvent
	expiresAt time.Time
}

// NewStore создаёт хранилище; при положительном cleanupInterval
// запускается фоновая уборка истёкших записей.
func NewStore(cleanupInterval time.Duration) *Store {
	store := &Store{
		stop: make(chan struct{}),
	}
	for i := range store.shards {
		store.shards[i] = &shard{
			entries: make(map[uuid.UUID]*entry, 64),
		}
	}

	if cleanupInterval > 0 {
		go store.cleanupLoop(cleanupInterval)
	}

	return store
}

func (s *Store) PutOrder(ctx context.Context, order models.Order, ttl time.Duration) error {
	const op = "memory.Store.PutOrder"

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	sh := s.shardFor(order.ID)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	current, found := sh.entries[order.ID]
	if !found || current.expired(time.Now()) {
		sh.entries[order.ID] = &entry{
			order:     order,
			expiresAt: time.Now().Add(ttl),
		}
		return nil
	}

	current.order = order
	current.expiresAt = time.Now().Add(ttl)
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (models.Order, error) {
	const op = "memory.Store.GetOrder"

	select {
	case <-ctx.Done():
		return models.Order{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	sh := s.shardFor(id)

	sh.mu.RLock()
	current, found := sh.entries[id]
	sh.mu.RUnlock()

	if !found || current.expired(time.Now()) {
		return models.Order{}, fmt.Errorf("%s: %w", op, storageErrors.ErrOrderNotFound)
	}

	return current.order, nil
}

func (s *Store) AppendEvent(ctx context.Context, id uuid.UUID, event models.OrderEvent, ttl time.Duration) error {
	const op = "memory.Store.AppendEvent"

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	sh := s.shardFor(id)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	current, found := sh.entries[id]
	if !found || current.expired(time.Now()) {
		return fmt.Errorf("%s: %w", op, storageErrors.ErrOrderNotFound)
	}

	current.events = append(current.events, event)
	current.expiresAt = time.Now().Add(ttl)
	return nil
}

func (s *Store) ListEvents(ctx context.Context, id uuid.UUID) ([]models.OrderEvent, error) {
	const op = "memory.Store.ListEvents"

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	sh := s.shardFor(id)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	current, found := sh.entries[id]
	if !found || current.expired(time.Now()) {
		return nil, nil
	}

	events := make([]models.OrderEvent, len(current.events))
	copy(events, current.events)
	return events, nil
}

func (s *Store) Clear(ctx context.Context, id uuid.UUID) error {
	const op = "memory.Store.Clear"

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	sh := s.shardFor(id)

	sh.mu.Lock()
	delete(sh.entries, id)
	sh.mu.Unlock()

	return nil
}

func (s *Store) Close() error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	return nil
}

func (s *Store) shardFor(id uuid.UUID) *shard {
	hash := fnv.New32a()
	hash.Write(id[:])
	return s.shards[hash.Sum32()%shardCount]
}

func (s *Store) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.removeExpired(time.Now())
		}
	}
}

func (s *Store) removeExpired(now time.Time) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, current := range sh.entries {
			if current.expired(now) {
				delete(sh.entries, id)
			}
		}
		sh.mu.Unlock()
	}
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}
