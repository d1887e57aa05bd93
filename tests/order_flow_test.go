//go:build integration

package tests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/domain/models"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/services/executor"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/services/submission"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/venue"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/pkg/retry"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/tests/suite"
)

// inlineDispatcher исполняет задачу синхронно вместо Kafka:
// интеграционный контур проверяет ядро, а не брокер. Ошибка исполнения
// не возвращается — так же ведёт себя consumer с его dead-letter
// политикой.
type inlineDispatcher struct {
	executor *executor.Service
}

func newInlineDispatcher(service *executor.Service) *inlineDispatcher {
	return &inlineDispatcher{
		executor: service,
	}
}

func (d *inlineDispatcher) DispatchOrder(ctx context.Context, orderID uuid.UUID) error {
	_ = d.executor.ExecuteOrderJob(ctx, orderID)
	return nil
}

type failingRouter struct{}

func (failingRouter) Route(context.Context, models.Order) (models.RoutingDecision, error) {
	return models.RoutingDecision{}, errors.New("router unavailable")
}

func (failingRouter) ExecuteSwap(context.Context, models.Venue, models.Order, decimal.Decimal) (models.SwapResult, error) {
	return models.SwapResult{}, errors.New("router unavailable")
}

func noSleep(_ context.Context, _ time.Duration) error {
	return nil
}

func instantPolicy(attempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		Sleep:       noSleep,
	}
}

func submitParams() submission.SubmitParams {
	return submission.SubmitParams{
		Type:        models.OrderTypeMarket,
		TokenIn:     "SOL",
		TokenOut:    "USDC",
		Amount:      decimal.NewFromInt(10),
		SlippageBps: 50,
	}
}

func TestOrderFlowConfirmed(t *testing.T) {
	ctx, s := suite.New(t)

	router := venue.NewRouter(venue.Config{Seed: 42, Sleep: noSleep})
	exec := executor.NewService(s.Store, s.Bus, router, s.Records, instantPolicy(3), suite.ActiveOrderTTL)
	dispatcher := newInlineDispatcher(exec)
	svc := submission.NewService(s.Records, s.Store, s.Bus, dispatcher, suite.ActiveOrderTTL)

	order, err := svc.SubmitOrder(ctx, submitParams())
	require.NoError(t, err)

	record, err := s.Records.GetOrder(ctx, order.ID)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusConfirmed, record.Status)
	require.NotNil(t, record.Venue)
	require.NotNil(t, record.ExecutedPrice)
	require.NotNil(t, record.TxRef)
	assert.True(t, record.ExecutedPrice.IsPositive())
	assert.Len(t, *record.TxRef, 64)
	assert.Nil(t, record.FailureReason)

	events, err := s.Store.ListEvents(ctx, order.ID)
	require.NoError(t, err)

	statuses := make([]models.OrderStatus, 0, len(events))
	for _, event := range events {
		statuses = append(statuses, event.Status)
	}
	assert.Equal(t, []models.OrderStatus{
		models.OrderStatusPending,
		models.OrderStatusRouting,
		models.OrderStatusBuilding,
		models.OrderStatusSubmitted,
		models.OrderStatusConfirmed,
	}, statuses)
}

func TestOrderFlowFailed(t *testing.T) {
	ctx, s := suite.New(t)

	exec := executor.NewService(s.Store, s.Bus, failingRouter{}, s.Records, instantPolicy(3), suite.ActiveOrderTTL)
	dispatcher := newInlineDispatcher(exec)
	svc := submission.NewService(s.Records, s.Store, s.Bus, dispatcher, suite.ActiveOrderTTL)

	order, err := svc.SubmitOrder(ctx, submitParams())
	require.NoError(t, err)

	record, err := s.Records.GetOrder(ctx, order.ID)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusFailed, record.Status)
	require.NotNil(t, record.FailureReason)
	assert.Contains(t, *record.FailureReason, "router unavailable")
	assert.Nil(t, record.Venue)
	assert.Nil(t, record.ExecutedPrice)

	events, err := s.Store.ListEvents(ctx, order.ID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, models.OrderStatusFailed, events[len(events)-1].Status)
}

func TestConcurrentOrdersAreIsolated(t *testing.T) {
	ctx, s := suite.New(t)

	router := venue.NewRouter(venue.Config{Seed: 7, Sleep: noSleep})
	exec := executor.NewService(s.Store, s.Bus, router, s.Records, instantPolicy(3), suite.ActiveOrderTTL)
	dispatcher := newInlineDispatcher(exec)
	svc := submission.NewService(s.Records, s.Store, s.Bus, dispatcher, suite.ActiveOrderTTL)

	const orderCount = 3

	var wg sync.WaitGroup
	orderIDs := make([]uuid.UUID, orderCount)
	for i := 0; i < orderCount; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order, err := svc.SubmitOrder(ctx, submitParams())
			require.NoError(t, err)
			orderIDs[i] = order.ID
		}(i)
	}
	wg.Wait()

	for _, orderID := range orderIDs {
		events, err := s.Store.ListEvents(ctx, orderID)
		require.NoError(t, err)

		statuses := make([]models.OrderStatus, 0, len(events))
		for _, event := range events {
			require.Equal(t, orderID, event.OrderID, "чужое событие в логе ордера")
			statuses = append(statuses, event.Status)
		}
		assert.Equal(t, []models.OrderStatus{
			models.OrderStatusPending,
			models.OrderStatusRouting,
			models.OrderStatusBuilding,
			models.OrderStatusSubmitted,
			models.OrderStatusConfirmed,
		}, statuses)

		record, err := s.Records.GetOrder(ctx, orderID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusConfirmed, record.Status)
	}
}

func TestRedisBusDeliversAcrossSubscribers(t *testing.T) {
	ctx, s := suite.New(t)

	orderID := uuid.New()

	received := make(chan models.OrderEvent, 8)
	unsubscribe, err := s.Bus.Subscribe(ctx, orderID, func(event models.OrderEvent) {
		received <- event
	})
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, s.Bus.Publish(ctx, orderID, models.NewPendingEvent(orderID)))
	require.NoError(t, s.Bus.Publish(ctx, orderID, models.NewRoutingEvent(orderID)))

	statuses := make([]models.OrderStatus, 0, 2)
	timeout := time.After(5 * time.Second)
	for len(statuses) < 2 {
		select {
		case event := <-received:
			statuses = append(statuses, event.Status)
		case <-timeout:
			t.Fatalf("получили только %d из 2 событий", len(statuses))
		}
	}

	assert.Equal(t, []models.OrderStatus{
		models.OrderStatusPending,
		models.OrderStatusRouting,
	}, statuses)
}
