package submission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/domain/models"
	repositoryErrors "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/errors/repository"
	serviceErrors "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/errors/service"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/pkg/logger"
)

type MockRecords struct {
	mock.Mock
}

func (m *MockRecords) InsertOrder(ctx context.Context, order models.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockRecords) GetOrder(ctx context.Context, id uuid.UUID) (models.OrderRecord, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.OrderRecord), args.Error(1)
}

type MockActiveStore struct {
	mock.Mock
}

func (m *MockActiveStore) PutOrder(ctx context.Context, order models.Order, ttl time.Duration) error {
	args := m.Called(ctx, order, ttl)
	return args.Error(0)
}

func (m *MockActiveStore) AppendEvent(ctx context.Context, id uuid.UUID, event models.OrderEvent, ttl time.Duration) error {
	args := m.Called(ctx, id, event, ttl)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, orderID uuid.UUID, event models.OrderEvent) error {
	args := m.Called(ctx, orderID, event)
	return args.Error(0)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) DispatchOrder(ctx context.Context, orderID uuid.UUID) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func TestMain(m *testing.M) {
	logger.SetNopLogger()
	m.Run()
}

func validParams() SubmitParams {
	return SubmitParams{
		Type:        models.OrderTypeMarket,
		TokenIn:     "SOL",
		TokenOut:    "USDC",
		Amount:      decimal.NewFromInt(10),
		SlippageBps: 50,
	}
}

func TestSubmitOrder(t *testing.T) {
	ctx := context.Background()
	ttl := 30 * time.Minute

	t.Run("успешная заявка проходит вставку, хранилище, pending и диспетчеризацию", func(t *testing.T) {
		records := &MockRecords{}
		store := &MockActiveStore{}
		bus := &MockPublisher{}
		dispatcher := &MockDispatcher{}

		records.On("InsertOrder", mock.Anything, mock.AnythingOfType("models.Order")).Return(nil).Once()
		store.On("PutOrder", mock.Anything, mock.AnythingOfType("models.Order"), ttl).Return(nil).Once()
		store.On("AppendEvent", mock.Anything, mock.Anything, mock.MatchedBy(func(event models.OrderEvent) bool {
			return event.Status == models.OrderStatusPending
		}), ttl).Return(nil).Once()
		bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		dispatcher.On("DispatchOrder", mock.Anything, mock.Anything).Return(nil).Once()

		service := NewService(records, store, bus, dispatcher, ttl)

		order, err := service.SubmitOrder(ctx, validParams())
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, order.ID)
		assert.Equal(t, models.OrderTypeMarket, order.Type)
		assert.False(t, order.CreatedAt.IsZero())

		records.AssertExpectations(t)
		store.AssertExpectations(t)
		bus.AssertExpectations(t)
		dispatcher.AssertExpectations(t)
	})

	t.Run("валидация отклоняет заявку до любых побочных эффектов", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*SubmitParams)
		}{
			{"пустой token_in", func(p *SubmitParams) { p.TokenIn = "" }},
			{"совпадающие токены", func(p *SubmitParams) { p.TokenOut = "SOL" }},
			{"нулевой объём", func(p *SubmitParams) { p.Amount = decimal.Zero }},
			{"отрицательный объём", func(p *SubmitParams) { p.Amount = decimal.NewFromInt(-1) }},
			{"slippage вне диапазона", func(p *SubmitParams) { p.SlippageBps = 10_001 }},
			{"неподдерживаемый тип", func(p *SubmitParams) { p.Type = models.OrderType("limit") }},
		}

		for _, testCase := range tests {
			t.Run(testCase.name, func(t *testing.T) {
				records := &MockRecords{}
				store := &MockActiveStore{}
				bus := &MockPublisher{}
				dispatcher := &MockDispatcher{}

				service := NewService(records, store, bus, dispatcher, ttl)

				params := validParams()
				testCase.mutate(&params)

				_, err := service.SubmitOrder(ctx, params)
				assert.ErrorIs(t, err, serviceErrors.ErrInvalidOrder)

				records.AssertNotCalled(t, "InsertOrder")
				dispatcher.AssertNotCalled(t, "DispatchOrder")
			})
		}
	})

	t.Run("ошибка публикации pending не роняет заявку", func(t *testing.T) {
		records := &MockRecords{}
		store := &MockActiveStore{}
		bus := &MockPublisher{}
		dispatcher := &MockDispatcher{}

		records.On("InsertOrder", mock.Anything, mock.Anything).Return(nil)
		store.On("PutOrder", mock.Anything, mock.Anything, ttl).Return(nil)
		store.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything, ttl).Return(nil)
		bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))
		dispatcher.On("DispatchOrder", mock.Anything, mock.Anything).Return(nil).Once()

		service := NewService(records, store, bus, dispatcher, ttl)

		_, err := service.SubmitOrder(ctx, validParams())
		assert.NoError(t, err)
		dispatcher.AssertExpectations(t)
	})

	t.Run("ошибка диспетчеризации возвращается вызывающему", func(t *testing.T) {
		records := &MockRecords{}
		store := &MockActiveStore{}
		bus := &MockPublisher{}
		dispatcher := &MockDispatcher{}

		records.On("InsertOrder", mock.Anything, mock.Anything).Return(nil)
		store.On("PutOrder", mock.Anything, mock.Anything, ttl).Return(nil)
		store.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything, ttl).Return(nil)
		bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		dispatchErr := errors.New("kafka unavailable")
		dispatcher.On("DispatchOrder", mock.Anything, mock.Anything).Return(dispatchErr)

		service := NewService(records, store, bus, dispatcher, ttl)

		_, err := service.SubmitOrder(ctx, validParams())
		assert.ErrorIs(t, err, dispatchErr)
	})
}

func TestGetOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("неизвестный ордер отображается в сервисную ошибку", func(t *testing.T) {
		records := &MockRecords{}
		records.On("GetOrder", mock.Anything, mock.Anything).
			Return(models.OrderRecord{}, repositoryErrors.ErrOrderNotFound)

		service := NewService(records, &MockActiveStore{}, &MockPublisher{}, &MockDispatcher{}, time.Minute)

		_, err := service.GetOrder(ctx, uuid.New())
		assert.ErrorIs(t, err, serviceErrors.ErrOrderNotFound)
	})

	t.Run("найденная запись возвращается как есть", func(t *testing.T) {
		expected := models.OrderRecord{
			ID:     uuid.New(),
			Status: models.OrderStatusConfirmed,
		}

		records := &MockRecords{}
		records.On("GetOrder", mock.Anything, expected.ID).Return(expected, nil)

		service := NewService(records, &MockActiveStore{}, &MockPublisher{}, &MockDispatcher{}, time.Minute)

		record, err := service.GetOrder(ctx, expected.ID)
		require.NoError(t, err)
		assert.Equal(t, expected, record)
	})
}
