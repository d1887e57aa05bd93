package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderEvent описывает один переход жизненного цикла ордера.
// Поля Venue/Price/TxRef заполнены только для confirmed, Reason только для failed.
type OrderEvent struct {
	OrderID   uuid.UUID        `json:"order_id"`
	Status    OrderStatus      `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Venue     Venue            `json:"venue,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	TxRef     string           `json:"tx_ref,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

func NewPendingEvent(orderID uuid.UUID) OrderEvent {
	return newStatusEvent(orderID, OrderStatusPending)
}

func NewRoutingEvent(orderID uuid.UUID) OrderEvent {
	return newStatusEvent(orderID, OrderStatusRouting)
}

func NewBuildingEvent(orderID uuid.UUID) OrderEvent {
	return newStatusEvent(orderID, OrderStatusBuilding)
}

func NewSubmittedEvent(orderID uuid.UUID) OrderEvent {
	return newStatusEvent(orderID, OrderStatusSubmitted)
}

func NewConfirmedEvent(orderID uuid.UUID, venue Venue, price decimal.Decimal, txRef string) OrderEvent {
	event := newStatusEvent(orderID, OrderStatusConfirmed)
	event.Venue = venue
	event.Price = &price
	event.TxRef = txRef
	return event
}

func NewFailedEvent(orderID uuid.UUID, reason string) OrderEvent {
	event := newStatusEvent(orderID, OrderStatusFailed)
	event.Reason = reason
	return event
}

func newStatusEvent(orderID uuid.UUID, status OrderStatus) OrderEvent {
	return OrderEvent{
		OrderID:   orderID,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
}

// SortCanonical упорядочивает события по каноническому порядку статусов,
// сохраняя порядок поступления для событий одного ранга.
func SortCanonical(events []OrderEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Status.Rank() < events[j].Status.Rank()
	})
}

// StatusSet собирает множество уже зафиксированных статусов из лога событий.
func StatusSet(events []OrderEvent) map[OrderStatus]struct{} {
	seen := make(map[OrderStatus]struct{}, len(events))
	for _, event := range events {
		seen[event.Status] = struct{}{}
	}
	return seen
}
