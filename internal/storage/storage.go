package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/domain/models"
)

// ActiveOrderStore держит живое состояние ордера (ордер + лог событий)
// с ограниченным временем жизни. Это единственный источник правды о том,
// что уже произошло: воркер читает лог, чтобы возобновляться идемпотентно,
// шлюз строит по нему бэклог для поздних подписчиков.
//
// AppendEvent не дедуплицирует: обязанность проверять членство статуса
// в логе лежит на вызывающем. Истечение TTL штатно: читатели обязаны
// переживать отсутствие ордера, ListEvents для отсутствующего ордера
// возвращает пустой лог без ошибки.
type ActiveOrderStore interface {
	PutOrder(ctx context.Context, order models.Order, ttl time.Duration) error
	GetOrder(ctx context.Context, id uuid.UUID) (models.Order, error)
	AppendEvent(ctx context.Context, id uuid.UUID, event models.OrderEvent, ttl time.Duration) error
	ListEvents(ctx context.Context, id uuid.UUID) ([]models.OrderEvent, error)
	Clear(ctx context.Context, id uuid.UUID) error
}
