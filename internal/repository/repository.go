package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/domain/models"
)

// OrderRecords хранит долговечную проекцию ордера: одна строка на ордер,
// вставка при создании и ровно одно обновление при терминальном исходе.
type OrderRecords interface {
	InsertOrder(ctx context.Context, order models.Order) error
	FinalizeOrder(ctx context.Context, params models.FinalizeOrderParams) error
	FailOrder(ctx context.Context, params models.FailOrderParams) error
	GetOrder(ctx context.Context, id uuid.UUID) (models.OrderRecord, error)
}
