package executor

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

	busMemory "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/bus/memory"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/domain/models"
	serviceErrors "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/errors/service"
	storeMemory "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/storage/memory"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/pkg/logger"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/pkg/retry"
)

const testTTL = time.Minute

func TestMain(m *testing.M) {
	logger.SetNopLogger()
	m.Run()
}

func newTestOrder() models.Order {
	return models.Order{
		ID:          uuid.New(),
		Type:        models.OrderTypeMarket,
		TokenIn:     "SOL",
		TokenOut:    "USDC",
		Amount:      decimal.NewFromInt(10),
		SlippageBps: 50,
		CreatedAt:   time.Now().UTC(),
	}
}

func testDecision() models.RoutingDecision {
	best := models.DexQuote{
		Venue:          models.VenueRaydium,
		Price:          decimal.RequireFromString("153.2"),
		FeeRate:        decimal.RequireFromString("0.0025"),
		EffectivePrice: decimal.RequireFromString("152.817"),
	}
	return models.RoutingDecision{
		Quotes: []models.DexQuote{best},
		Best:   best,
	}
}

func testSwapResult() models.SwapResult {
	return models.SwapResult{
		Venue:         models.VenueRaydium,
		ExecutedPrice: decimal.RequireFromString("153.4"),
		TxRef:         "deadbeef",
	}
}

func noDelayPolicy(attempts int, slept *[]time.Duration) retry.Policy {
	return retry.Policy{
		MaxAttempts: attempts,
		BaseDelay:   2 * time.Second,
		Sleep: func(_ context.Context, delay time.Duration) error {
			if slept != nil {
				*slept = append(*slept, delay)
			}
			return nil
		},
	}
}

// seedOrder кладёт ордер в хранилище и записывает pending —
// то, что в проде делает путь приёма заявки до диспетчеризации.
func seedOrder(t *testing.T, ctx context.Context, store *storeMemory.Store, order models.Order, statuses ...models.OrderStatus) {
	t.Helper()

	require.NoError(t, store.PutOrder(ctx, order, testTTL))
	require.NoError(t, store.AppendEvent(ctx, order.ID, models.NewPendingEvent(order.ID), testTTL))

	for _, status := range statuses {
		event := models.OrderEvent{
			OrderID:   order.ID,
			Status:    status,
			Timestamp: time.Now().UTC(),
		}
		require.NoError(t, store.AppendEvent(ctx, order.ID, event, testTTL))
	}
}

func logStatuses(t *testing.T, ctx context.Context, store *storeMemory.Store, id uuid.UUID) []models.OrderStatus {
	t.Helper()

	events, err := store.ListEvents(ctx, id)
	require.NoError(t, err)

	statuses := make([]models.OrderStatus, 0, len(events))
	for _, event := range events {
		statuses = append(statuses, event.Status)
	}
	return statuses
}

func TestExecuteOrderJob(t *testing.T) {
	ctx := context.Background()

	t.Run("успешное исполнение проходит все шаги по порядку", func(t *testing.T) {
		store := storeMemory.NewStore(0)
		bus := busMemory.NewBus()
		defer bus.Close()

		order := newTestOrder()
		seedOrder(t, ctx, store, order)

		router := &MockRouter{}
		router.On("Route", mock.Anything, order).Return(testDecision(), nil).Once()
		router.On("ExecuteSwap", mock.Anything, models.VenueRaydium, order, testDecision().Best.Price).
			Return(testSwapResult(), nil).Once()

		records := &MockFinalRecords{}
		records.On("FinalizeOrder", mock.Anything, mock.MatchedBy(func(params models.FinalizeOrderParams) bool {
			return params.OrderID == order.ID &&
				params.Venue == models.VenueRaydium &&
				params.Price.Equal(testSwapResult().ExecutedPrice) &&
				params.TxRef == "deadbeef"
		})).Return(nil).Once()

		service := NewService(store, bus, router, records, noDelayPolicy(3, nil), testTTL)

		require.NoError(t, service.ExecuteOrderJob(ctx, order.ID))

		assert.Equal(t, []models.OrderStatus{
			models.OrderStatusPending,
			models.OrderStatusRouting,
			models.OrderStatusBuilding,
			models.OrderStatusSubmitted,
			models.OrderStatusConfirmed,
		}, logStatuses(t, ctx, store, order.ID))

		router.AssertExpectations(t)
		records.AssertExpectations(t)
	})

	t.Run("возобновление не эмитит уже записанные статусы", func(t *testing.T) {
		store := storeMemory.NewStore(0)
		bus := busMemory.NewBus()
		defer bus.Close()

		order := newTestOrder()
		seedOrder(t, ctx, store, order, models.OrderStatusRouting)

		router := &MockRouter{}
		router.On("Route", mock.Anything, order).Return(testDecision(), nil).Once()
		router.On("ExecuteSwap", mock.Anything, mock.Anything, order, mock.Anything).
			Return(testSwapResult(), nil).Once()

		records := &MockFinalRecords{}
		records.On("FinalizeOrder", mock.Anything, mock.Anything).Return(nil).Once()

		service := NewService(store, bus, router, records, noDelayPolicy(3, nil), testTTL)

		require.NoError(t, service.ExecuteOrderJob(ctx, order.ID))

		// Ровно building, submitted, confirmed поверх [pending, routing].
		assert.Equal(t, []models.OrderStatus{
			models.OrderStatusPending,
			models.OrderStatusRouting,
			models.OrderStatusBuilding,
			models.OrderStatusSubmitted,
			models.OrderStatusConfirmed,
		}, logStatuses(t, ctx, store, order.ID))
	})

	t.Run("терминальный ордер не трогается повторно", func(t *testing.T) {
		store := storeMemory.NewStore(0)
		bus := busMemory.NewBus()
		defer bus.Close()

		order := newTestOrder()
		seedOrder(t, ctx, store, order,
			models.OrderStatusRouting,
			models.OrderStatusBuilding,
			models.OrderStatusSubmitted,
			models.OrderStatusConfirmed,
		)

		router := &MockRouter{}
		records := &MockFinalRecords{}

		service := NewService(store, bus, router, records, noDelayPolicy(3, nil), testTTL)

		require.NoError(t, service.ExecuteOrderJob(ctx, order.ID))

		router.AssertNotCalled(t, "Route")
		records.AssertNotCalled(t, "FinalizeOrder")
		assert.Len(t, logStatuses(t, ctx, store, order.ID), 5)
	})

	t.Run("отсутствующий активный ордер фатален и не повторяется", func(t *testing.T) {
		store := storeMemory.NewStore(0)
		bus := busMemory.NewBus()
		defer bus.Close()

		var slept []time.Duration
		router := &MockRouter{}
		records := &MockFinalRecords{}

		service := NewService(store, bus, router, records, noDelayPolicy(3, &slept), testTTL)

		err := service.ExecuteOrderJob(ctx, uuid.New())
		assert.ErrorIs(t, err, serviceErrors.ErrOrderNotFound)
		assert.Empty(t, slept)
		router.AssertNotCalled(t, "Route")
		records.AssertNotCalled(t, "FailOrder")
	})

	t.Run("исчерпание попыток пишет отказ и эмитит failed", func(t *testing.T) {
		store := storeMemory.NewStore(0)
		bus := busMemory.NewBus()
		defer bus.Close()

		order := newTestOrder()
		seedOrder(t, ctx, store, order)

		routeErr := errors.New("venue unreachable")

		var slept []time.Duration
		router := &MockRouter{}
		router.On("Route", mock.Anything, order).Return(models.RoutingDecision{}, routeErr).Times(3)

		records := &MockFinalRecords{}
		records.On("FailOrder", mock.Anything, mock.MatchedBy(func(params models.FailOrderParams) bool {
			return params.OrderID == order.ID && params.Reason != ""
		})).Return(nil).Once()

		service := NewService(store, bus, router, records, noDelayPolicy(3, &slept), testTTL)

		err := service.ExecuteOrderJob(ctx, order.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, routeErr)

		// Две паузы между тремя попытками: b и 2b.
		assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, slept)

		statuses := logStatuses(t, ctx, store, order.ID)
		assert.Equal(t, []models.OrderStatus{
			models.OrderStatusPending,
			models.OrderStatusFailed,
		}, statuses)

		router.AssertExpectations(t)
		records.AssertExpectations(t)
	})

	t.Run("ошибка публикации в шину не роняет попытку", func(t *testing.T) {
		store := storeMemory.NewStore(0)

		order := newTestOrder()
		seedOrder(t, ctx, store, order)

		publisher := &MockPublisher{}
		publisher.On("Publish", mock.Anything, order.ID, mock.Anything).
			Return(errors.New("broker down"))

		router := &MockRouter{}
		router.On("Route", mock.Anything, order).Return(testDecision(), nil).Once()
		router.On("ExecuteSwap", mock.Anything, mock.Anything, order, mock.Anything).
			Return(testSwapResult(), nil).Once()

		records := &MockFinalRecords{}
		records.On("FinalizeOrder", mock.Anything, mock.Anything).Return(nil).Once()

		service := NewService(store, publisher, router, records, noDelayPolicy(1, nil), testTTL)

		require.NoError(t, service.ExecuteOrderJob(ctx, order.ID))
		assert.Len(t, logStatuses(t, ctx, store, order.ID), 5)
	})

	t.Run("ошибка записи в лог событий роняет попытку", func(t *testing.T) {
		bus := busMemory.NewBus()
		defer bus.Close()

		order := newTestOrder()
		appendErr := errors.New("redis down")

		store := &MockActiveStore{}
		store.On("GetOrder", mock.Anything, order.ID).Return(order, nil).Once()
		store.On("ListEvents", mock.Anything, order.ID).
			Return([]models.OrderEvent{models.NewPendingEvent(order.ID)}, nil)
		store.On("AppendEvent", mock.Anything, order.ID, mock.Anything, testTTL).
			Return(appendErr)

		var slept []time.Duration
		router := &MockRouter{}
		router.On("Route", mock.Anything, order).Return(testDecision(), nil).Times(2)

		records := &MockFinalRecords{}
		records.On("FailOrder", mock.Anything, mock.Anything).Return(nil).Once()

		service := NewService(store, bus, router, records, noDelayPolicy(2, &slept), testTTL)

		err := service.ExecuteOrderJob(ctx, order.ID)
		assert.ErrorIs(t, err, appendErr)
		assert.Equal(t, []time.Duration{2 * time.Second}, slept)

		router.AssertNotCalled(t, "ExecuteSwap")
		records.AssertExpectations(t)
	})

	t.Run("сбой durable-фиксации повторяется без дубля confirmed", func(t *testing.T) {
		store := storeMemory.NewStore(0)
		bus := busMemory.NewBus()
		defer bus.Close()

		order := newTestOrder()
		seedOrder(t, ctx, store, order)

		router := &MockRouter{}
		router.On("Route", mock.Anything, order).Return(testDecision(), nil).Times(2)
		router.On("ExecuteSwap", mock.Anything, mock.Anything, order, mock.Anything).
			Return(testSwapResult(), nil).Times(2)

		records := &MockFinalRecords{}
		records.On("FinalizeOrder", mock.Anything, mock.Anything).
			Return(errors.New("postgres down")).Once()
		records.On("FinalizeOrder", mock.Anything, mock.Anything).
			Return(nil).Once()

		service := NewService(store, bus, router, records, noDelayPolicy(3, nil), testTTL)

		require.NoError(t, service.ExecuteOrderJob(ctx, order.ID))

		statuses := logStatuses(t, ctx, store, order.ID)
		assert.Equal(t, []models.OrderStatus{
			models.OrderStatusPending,
			models.OrderStatusRouting,
			models.OrderStatusBuilding,
			models.OrderStatusSubmitted,
			models.OrderStatusConfirmed,
		}, statuses)

		records.AssertExpectations(t)
	})
}
