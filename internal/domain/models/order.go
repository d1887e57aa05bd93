package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID          uuid.UUID       `json:"id"`
	Type        OrderType       `json:"type"`
	TokenIn     string          `json:"token_in"`
	TokenOut    string          `json:"token_out"`
	Amount      decimal.Decimal `json:"amount"`
	SlippageBps int32           `json:"slippage_bps"`
	CreatedAt   time.Time       `json:"created_at"`
}

type OrderType string

const (
	OrderTypeMarket OrderType = "market"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusRouting   OrderStatus = "routing"
	OrderStatusBuilding  OrderStatus = "building"
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusFailed    OrderStatus = "failed"
)

// Rank задаёт канонический порядок статусов жизненного цикла.
// Терминальные статусы делят последнюю позицию, так как взаимоисключающи.
func (s OrderStatus) Rank() int {
	switch s {
	case OrderStatusPending:
		return 1
	case OrderStatusRouting:
		return 2
	case OrderStatusBuilding:
		return 3
	case OrderStatusSubmitted:
		return 4
	case OrderStatusConfirmed, OrderStatusFailed:
		return 5
	default:
		return 0
	}
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusConfirmed || s == OrderStatusFailed
}

func (s OrderStatus) Valid() bool {
	return s.Rank() > 0
}
