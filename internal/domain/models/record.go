package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderRecord — долговечная проекция ордера: одна строка на ордер,
// записывается при создании и обновляется один раз при терминальном
// исходе.
type OrderRecord struct {
	ID            uuid.UUID
	Type          OrderType
	TokenIn       string
	TokenOut      string
	Amount        decimal.Decimal
	SlippageBps   int32
	Status        OrderStatus
	Venue         *Venue
	ExecutedPrice *decimal.Decimal
	TxRef         *string
	FailureReason *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FinalizeOrderParams фиксирует успешное терминальное состояние ордера.
type FinalizeOrderParams struct {
	OrderID   uuid.UUID
	Venue     Venue
	Price     decimal.Decimal
	TxRef     string
	Timestamp time.Time
}

// FailOrderParams фиксирует терминальный отказ с причиной.
type FailOrderParams struct {
	OrderID   uuid.UUID
	Reason    string
	Timestamp time.Time
}

func NewOrderRecord(order Order) OrderRecord {
	return OrderRecord{
		ID:          order.ID,
		Type:        order.Type,
		TokenIn:     order.TokenIn,
		TokenOut:    order.TokenOut,
		Amount:      order.Amount,
		SlippageBps: order.SlippageBps,
		Status:      OrderStatusPending,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.CreatedAt,
	}
}
