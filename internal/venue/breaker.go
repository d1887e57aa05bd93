package venue

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/config"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/domain/models"
)

// Executor объединяет операции маршрутизации и исполнения,
// которые нужны воркеру от venue-слоя.
type Executor interface {
	Route(ctx context.Context, order models.Order) (models.RoutingDecision, error)
	ExecuteSwap(ctx context.Context, venue models.Venue, order models.Order, quotedPrice decimal.Decimal) (models.SwapResult, error)
}

// BreakerRouter оборачивает Executor предохранителями: по одному
// на маршрутизацию и на исполнение, чтобы сбои одного пути не
// размыкали другой.
type BreakerRouter struct {
	next  Executor
	route *gobreaker.CircuitBreaker[models.RoutingDecision]
	swap  *gobreaker.CircuitBreaker[models.SwapResult]
}

func NewBreakerRouter(next Executor, cfg config.CircuitBreakerConfig) *BreakerRouter {
	return &BreakerRouter{
		next:  next,
		route: newBreaker[models.RoutingDecision]("venueRoute", cfg),
		swap:  newBreaker[models.SwapResult]("venueSwap", cfg),
	}
}

func newBreaker[T any](name string, cfg config.CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	})
}

func (b *BreakerRouter) Route(ctx context.Context, order models.Order) (models.RoutingDecision, error) {
	decision, err := b.route.Execute(func() (models.RoutingDecision, error) {
		return b.next.Route(ctx, order)
	})
	if err != nil {
		return models.RoutingDecision{}, fmt.Errorf("circuit breaker: %w", err)
	}

	return decision, nil
}

func (b *BreakerRouter) ExecuteSwap(ctx context.Context, venue models.Venue, order models.Order, quotedPrice decimal.Decimal) (models.SwapResult, error) {
	result, err := b.swap.Execute(func() (models.SwapResult, error) {
		return b.next.ExecuteSwap(ctx, venue, order, quotedPrice)
	})
	if err != nil {
		return models.SwapResult{}, fmt.Errorf("circuit breaker: %w", err)
	}

	return result, nil
}
