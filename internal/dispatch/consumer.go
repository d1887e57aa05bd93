package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/pkg/logger"
	"github.com/google/uuid"
)

type JobRunner interface {
	ExecuteOrderJob(ctx context.Context, orderID uuid.UUID) error
}

// Consumer читает задачи из consumer group и гонит их через воркер.
// Сообщения одной партиции обрабатываются последовательно — так
// сохраняется единственный писатель на ордер; параллелизм между
// партициями ограничен семафором, поток задач — rate-лимитером.
// Терминальный отказ задачи логируется и оффсет подтверждается:
// dead-letter политика — забота внешнего транспорта.
type Consumer struct {
	group  sarama.ConsumerGroup
	topic  string
	runner JobRunner
	sem    *semaphore.Weighted
	limit  *rate.Limiter
}

func NewConsumerGroup(brokers []string, groupID string) (sarama.ConsumerGroup, error) {
	config := sarama.NewConfig()
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("sarama.NewConsumerGroup: %w", err)
	}

	return group, nil
}

func NewConsumer(group sarama.ConsumerGroup, topic string, runner JobRunner, concurrency int64, ratePerMinute int) *Consumer {
	if concurrency < 1 {
		concurrency = 1
	}

	limit := rate.Limit(float64(ratePerMinute) / 60)
	if ratePerMinute <= 0 {
		limit = rate.Inf
	}

	return &Consumer{
		group:  group,
		topic:  topic,
		runner: runner,
		sem:    semaphore.NewWeighted(concurrency),
		limit:  rate.NewLimiter(limit, 1),
	}
}

// Run блокирует до отмены контекста, переустанавливая сессию после
// каждого ребаланса.
func (c *Consumer) Run(ctx context.Context) error {
	const op = "dispatch.Consumer.Run"

	handler := &groupHandler{consumer: c}

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}

			return fmt.Errorf("%s: %w", op, err)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

// processMessage исполняет одну задачу с учётом лимита и семафора.
// Повреждённое сообщение пропускается: его бесполезно доставлять заново.
func (c *Consumer) processMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	var job OrderJob
	if err := json.Unmarshal(message.Value, &job); err != nil {
		logger.Error(ctx, "malformed order job skipped",
			zap.Int64("offset", message.Offset),
			zap.Error(err),
		)
		return nil
	}

	if err := c.limit.Wait(ctx); err != nil {
		return err
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	if err := c.runner.ExecuteOrderJob(ctx, job.OrderID); err != nil {
		logger.Error(ctx, "order job failed terminally",
			zap.String("order_id", job.OrderID.String()),
			zap.Error(err),
		)
	}

	return nil
}

type groupHandler struct {
	consumer *Consumer
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()

	for message := range claim.Messages() {
		if err := h.consumer.processMessage(ctx, message); err != nil {
			return err
		}

		session.MarkMessage(message, "")
	}

	return nil
}
