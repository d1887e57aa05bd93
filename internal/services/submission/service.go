package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/domain/models"
	repositoryErrors "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/errors/repository"
	serviceErrors "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/errors/service"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/metrics"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/pkg/logger"
)

const maxSlippageBps = 10_000

// Service принимает заявку: долговечная вставка, живое состояние,
// pending-событие и диспетчеризация задачи — строго в этом порядке.
type Service struct {
	records    Records
	store      ActiveStore
	bus        Publisher
	dispatcher Dispatcher
	ttl        time.Duration
}

type Records interface {
	InsertOrder(ctx context.Context, order models.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (models.OrderRecord, error)
}

type ActiveStore interface {
	PutOrder(ctx context.Context, order models.Order, ttl time.Duration) error
	AppendEvent(ctx context.Context, id uuid.UUID, event models.OrderEvent, ttl time.Duration) error
}

type Publisher interface {
	Publish(ctx context.Context, orderID uuid.UUID, event models.OrderEvent) error
}

type Dispatcher interface {
	DispatchOrder(ctx context.Context, orderID uuid.UUID) error
}

func NewService(records Records, store ActiveStore, bus Publisher, dispatcher Dispatcher, ttl time.Duration) *Service {
	return &Service{
		records:    records,
		store:      store,
		bus:        bus,
		dispatcher: dispatcher,
		ttl:        ttl,
	}
}

type SubmitParams struct {
	Type        models.OrderType
	TokenIn     string
	TokenOut    string
	Amount      decimal.Decimal
	SlippageBps int32
}

func (p SubmitParams) validate() error {
	if p.Type != models.OrderTypeMarket {
		return fmt.Errorf("%w: unsupported order type %q", serviceErrors.ErrInvalidOrder, p.Type)
	}
	if p.TokenIn == "" || p.TokenOut == "" {
		return fmt.Errorf("%w: token_in and token_out are required", serviceErrors.ErrInvalidOrder)
	}
	if p.TokenIn == p.TokenOut {
		return fmt.Errorf("%w: token_in and token_out must differ", serviceErrors.ErrInvalidOrder)
	}
	if !p.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", serviceErrors.ErrInvalidOrder)
	}
	if p.SlippageBps < 0 || p.SlippageBps > maxSlippageBps {
		return fmt.Errorf("%w: slippage_bps must be in [0, %d]", serviceErrors.ErrInvalidOrder, maxSlippageBps)
	}

	return nil
}

func (s *Service) SubmitOrder(ctx context.Context, params SubmitParams) (models.Order, error) {
	const op = "submission.Service.SubmitOrder"

	if err := params.validate(); err != nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	order := models.Order{
		ID:          uuid.New(),
		Type:        params.Type,
		TokenIn:     params.TokenIn,
		TokenOut:    params.TokenOut,
		Amount:      params.Amount,
		SlippageBps: params.SlippageBps,
		CreatedAt:   time.Now().UTC(),
	}

	ctx = logger.ContextWithOrderID(ctx, order.ID.String())

	if err := s.records.InsertOrder(ctx, order); err != nil {
		if errors.Is(err, repositoryErrors.ErrOrderAlreadyExists) {
			return models.Order{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrOrderAlreadyExists)
		}

		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.PutOrder(ctx, order, s.ttl); err != nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	pending := models.NewPendingEvent(order.ID)
	if err := s.store.AppendEvent(ctx, order.ID, pending, s.ttl); err != nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	metrics.LifecycleEventsTotal.WithLabelValues(string(pending.Status)).Inc()

	if err := s.bus.Publish(ctx, order.ID, pending); err != nil {
		logger.Warn(ctx, "pending event publish failed", zap.Error(err))
	}

	if err := s.dispatcher.DispatchOrder(ctx, order.ID); err != nil {
		return models.Order{}, fmt.Errorf("%s: dispatch: %w", op, err)
	}

	metrics.OrdersSubmittedTotal.Inc()
	logger.Info(ctx, "order accepted",
		zap.String("token_in", order.TokenIn),
		zap.String("token_out", order.TokenOut),
		zap.String("amount", order.Amount.String()),
	)

	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (models.OrderRecord, error) {
	const op = "submission.Service.GetOrder"

	record, err := s.records.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, repositoryErrors.ErrOrderNotFound) {
			return models.OrderRecord{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrOrderNotFound)
		}

		return models.OrderRecord{}, fmt.Errorf("%s: %w", op, err)
	}

	return record, nil
}
