package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/domain/models"
)

type MockActiveStore struct {
	mock.Mock
}

func (m *MockActiveStore) GetOrder(ctx context.Context, id uuid.UUID) (models.Order, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Order), args.Error(1)
}

func (m *MockActiveStore) AppendEvent(ctx context.Context, id uuid.UUID, event models.OrderEvent, ttl time.Duration) error {
	args := m.Called(ctx, id, event, ttl)
	return args.Error(0)
}

func (m *MockActiveStore) ListEvents(ctx context.Context, id uuid.UUID) ([]models.OrderEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OrderEvent), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, orderID uuid.UUID, event models.OrderEvent) error {
	args := m.Called(ctx, orderID, event)
	return args.Error(0)
}

type MockRouter struct {
	mock.Mock
}

func (m *MockRouter) Route(ctx context.Context, order models.Order) (models.RoutingDecision, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(models.RoutingDecision), args.Error(1)
}

func (m *MockRouter) ExecuteSwap(ctx context.Context, venue models.Venue, order models.Order, quotedPrice decimal.Decimal) (models.SwapResult, error) {
	args := m.Called(ctx, venue, order, quotedPrice)
	return args.Get(0).(models.SwapResult), args.Error(1)
}

type MockFinalRecords struct {
	mock.Mock
}

func (m *MockFinalRecords) FinalizeOrder(ctx context.Context, params models.FinalizeOrderParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockFinalRecords) FailOrder(ctx context.Context, params models.FailOrderParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}
