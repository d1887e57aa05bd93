package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/domain/models"
)

type Order struct {
	ID            uuid.UUID        `db:"id"`
	Type          string           `db:"type"`
	TokenIn       string           `db:"token_in"`
	TokenOut      string           `db:"token_out"`
	Amount        decimal.Decimal  `db:"amount"`
	SlippageBps   int32            `db:"slippage_bps"`
	Status        string           `db:"status"`
	Venue         *string          `db:"venue"`
	ExecutedPrice *decimal.Decimal `db:"executed_price"`
	TxRef         *string          `db:"tx_ref"`
	FailureReason *string          `db:"failure_reason"`
	CreatedAt     time.Time        `db:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at"`
}

func (o Order) ToDomain() models.OrderRecord {
	record := models.OrderRecord{
		ID:            o.ID,
		Type:          models.OrderType(o.Type),
		TokenIn:       o.TokenIn,
		TokenOut:      o.TokenOut,
		Amount:        o.Amount,
		SlippageBps:   o.SlippageBps,
		Status:        models.OrderStatus(o.Status),
		ExecutedPrice: o.ExecutedPrice,
		TxRef:         o.TxRef,
		FailureReason: o.FailureReason,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}

	if o.Venue != nil {
		venue := models.Venue(*o.Venue)
		record.Venue = &venue
	}

	return record
}

func FromDomain(record models.OrderRecord) Order {
	order := Order{
		ID:            record.ID,
		Type:          string(record.Type),
		TokenIn:       record.TokenIn,
		TokenOut:      record.TokenOut,
		Amount:        record.Amount,
		SlippageBps:   record.SlippageBps,
		Status:        string(record.Status),
		ExecutedPrice: record.ExecutedPrice,
		TxRef:         record.TxRef,
		FailureReason: record.FailureReason,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}

	if record.Venue != nil {
		venue := string(*record.Venue)
		order.Venue = &venue
	}

	return order
}
