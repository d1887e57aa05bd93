package bus

import (
	"context"

	"github.com/google/uuid"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/domain/models"
)

// EventBus рассылает события жизненного цикла всем живым подписчикам
// ордера. Шина не хранит историю и не упорядочивает: publish без
// подписчиков молча теряется, поздние подписчики добирают историю из
// ActiveOrderStore. Функция отписки идемпотентна и безопасна после Close.
type EventBus interface {
	Publish(ctx context.Context, orderID uuid.UUID, event models.OrderEvent) error
	Subscribe(ctx context.Context, orderID uuid.UUID, handler func(event models.OrderEvent)) (func(), error)
	Close() error
}
