package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/domain/models"
	serviceErrors "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/errors/service"
	storageErrors "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/errors/storage"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/metrics"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/pkg/logger"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/pkg/retry"
)

type Service struct {
	store   ActiveStore
	bus     Publisher
	router  Router
	records FinalRecords
	retry   retry.Policy
	ttl     time.Duration
}

type ActiveStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (models.Order, error)
	AppendEvent(ctx context.Context, id uuid.UUID, event models.OrderEvent, ttl time.Duration) error
	ListEvents(ctx context.Context, id uuid.UUID) ([]models.OrderEvent, error)
}

type Publisher interface {
	Publish(ctx context.Context, orderID uuid.UUID, event models.OrderEvent) error
}

type Router interface {
	Route(ctx context.Context, order models.Order) (models.RoutingDecision, error)
	ExecuteSwap(ctx context.Context, venue models.Venue, order models.Order, quotedPrice decimal.Decimal) (models.SwapResult, error)
}

type FinalRecords interface {
	FinalizeOrder(ctx context.Context, params models.FinalizeOrderParams) error
	FailOrder(ctx context.Context, params models.FailOrderParams) error
}

func NewService(store ActiveStore, bus Publisher, router Router, records FinalRecords, retryPolicy retry.Policy, ttl time.Duration) *Service {
	return &Service{
		store:   store,
		bus:     bus,
		router:  router,
		records: records,
		retry:   retryPolicy,
		ttl:     ttl,
	}
}

// ExecuteOrderJob — точка входа для транспорта диспетчеризации.
// Отсутствие активного ордера фатально и не повторяется: задача может
// существовать только после успешной записи ордера в хранилище, значит
// промах — это истёкший TTL или ошибка конфигурации. Любой другой сбой
// повторяется с экспоненциальной задержкой; после исчерпания попыток
// пишется долговечная запись об отказе, эмитится failed и ошибка
// возвращается транспорту для его dead-letter политики.
func (s *Service) ExecuteOrderJob(ctx context.Context, orderID uuid.UUID) error {
	const op = "executor.Service.ExecuteOrderJob"

	ctx = logger.ContextWithOrderID(ctx, orderID.String())

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, storageErrors.ErrOrderNotFound) {
			return fmt.Errorf("%s: %w", op, serviceErrors.ErrOrderNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	started := time.Now()

	policy := s.retry
	if policy.Notify == nil {
		policy.Notify = func(attempt int, attemptErr error, delay time.Duration) {
			logger.Warn(ctx, "order execution attempt failed, retrying",
				zap.Int("attempt", attempt-1),
				zap.Duration("backoff", delay),
				zap.Error(attemptErr),
			)
		}
	}

	attempts := 0
	err = policy.Do(ctx, func(ctx context.Context) error {
		attempts++
		return s.processOnce(ctx, order)
	})

	metrics.OrderExecutionDuration.Observe(time.Since(started).Seconds())
	metrics.OrderExecutionAttempts.Observe(float64(attempts))

	if err != nil {
		s.failOrder(ctx, order, err)
		metrics.OrderExecutionsTotal.WithLabelValues(string(models.OrderStatusFailed)).Inc()

		return fmt.Errorf("%s: %w", op, err)
	}

	metrics.OrderExecutionsTotal.WithLabelValues(string(models.OrderStatusConfirmed)).Inc()

	return nil
}

// processOnce проводит ордер по оставшимся шагам жизненного цикла.
// Лог событий — единственный источник правды: уже записанный статус
// никогда не эмитится повторно, поэтому повторный запуск после
// частичного сбоя дёшев и сходится к терминальному состоянию.
func (s *Service) processOnce(ctx context.Context, order models.Order) error {
	const op = "executor.Service.processOnce"

	events, err := s.store.ListEvents(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	seen := models.StatusSet(events)
	if terminalRecorded(seen) {
		logger.Info(ctx, "order already terminal, skipping")
		return nil
	}

	// Решение о маршрутизации не кэшируется: котировки симулируются
	// заново при каждой попытке, даже если статус routing уже записан.
	decision, err := s.router.Route(ctx, order)
	if err != nil {
		return fmt.Errorf("%s: route: %w", op, err)
	}

	steps := []struct {
		status models.OrderStatus
		event  func() models.OrderEvent
	}{
		{models.OrderStatusRouting, func() models.OrderEvent { return models.NewRoutingEvent(order.ID) }},
		{models.OrderStatusBuilding, func() models.OrderEvent { return models.NewBuildingEvent(order.ID) }},
		{models.OrderStatusSubmitted, func() models.OrderEvent { return models.NewSubmittedEvent(order.ID) }},
	}

	for _, step := range steps {
		if _, recorded := seen[step.status]; recorded {
			continue
		}

		if err := s.emit(ctx, order.ID, step.event()); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	result, err := s.router.ExecuteSwap(ctx, decision.Best.Venue, order, decision.Best.Price)
	if err != nil {
		return fmt.Errorf("%s: execute swap: %w", op, err)
	}

	if _, recorded := seen[models.OrderStatusConfirmed]; recorded {
		return nil
	}

	confirmed := models.NewConfirmedEvent(order.ID, result.Venue, result.ExecutedPrice, result.TxRef)

	// Сначала долговечная запись: если она не пройдёт, попытка
	// повторится и confirmed не окажется видимым без фиксации.
	if err := s.records.FinalizeOrder(ctx, models.FinalizeOrderParams{
		OrderID:   order.ID,
		Venue:     result.Venue,
		Price:     result.ExecutedPrice,
		TxRef:     result.TxRef,
		Timestamp: confirmed.Timestamp,
	}); err != nil {
		return fmt.Errorf("%s: finalize: %w", op, err)
	}

	if err := s.emit(ctx, order.ID, confirmed); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Info(ctx, "order confirmed",
		zap.String("venue", string(result.Venue)),
		zap.String("executed_price", result.ExecutedPrice.String()),
	)

	return nil
}

// emit записывает событие в хранилище и публикует его в шину.
// Ошибка записи роняет попытку; ошибка публикации только логируется —
// долговечность для поздних подписчиков обеспечивает хранилище.
func (s *Service) emit(ctx context.Context, orderID uuid.UUID, event models.OrderEvent) error {
	if err := s.store.AppendEvent(ctx, orderID, event, s.ttl); err != nil {
		return fmt.Errorf("append %s: %w", event.Status, err)
	}

	metrics.LifecycleEventsTotal.WithLabelValues(string(event.Status)).Inc()

	if err := s.bus.Publish(ctx, orderID, event); err != nil {
		logger.Warn(ctx, "event publish failed",
			zap.String("status", string(event.Status)),
			zap.Error(err),
		)
	}

	return nil
}

// failOrder фиксирует терминальный отказ: долговечная запись плюс
// guarded-эмиссия failed. Оба действия best-effort — ошибка исполнения
// уже есть и будет возвращена транспорту в любом случае.
func (s *Service) failOrder(ctx context.Context, order models.Order, cause error) {
	now := time.Now().UTC()

	if err := s.records.FailOrder(ctx, models.FailOrderParams{
		OrderID:   order.ID,
		Reason:    cause.Error(),
		Timestamp: now,
	}); err != nil {
		logger.Error(ctx, "durable failure record write failed", zap.Error(err))
	}

	events, err := s.store.ListEvents(ctx, order.ID)
	if err != nil {
		logger.Error(ctx, "event log read failed during failure handling", zap.Error(err))
		return
	}

	if terminalRecorded(models.StatusSet(events)) {
		return
	}

	if err := s.emit(ctx, order.ID, models.NewFailedEvent(order.ID, cause.Error())); err != nil {
		logger.Error(ctx, "failed event emission failed", zap.Error(err))
	}
}

func terminalRecorded(seen map[models.OrderStatus]struct{}) bool {
	if _, found := seen[models.OrderStatusConfirmed]; found {
		return true
	}

	_, found := seen[models.OrderStatusFailed]
	return found
}
