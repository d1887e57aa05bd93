package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/pkg/logger"
)

// Producer публикует задачи исполнения. Синхронный продюсер с acks=all
// и идемпотентной записью: повторная доставка одной задачи безопасна
// (воркер идемпотентен по логу событий), но лишние дубли не нужны.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewProducer(producer sarama.SyncProducer, topic string) *Producer {
	return &Producer{
		producer: producer,
		topic:    topic,
	}
}

func ConnectProducer(brokers []string, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("sarama.NewSyncProducer: %w", err)
	}

	return NewProducer(producer, topic), nil
}

func (p *Producer) DispatchOrder(ctx context.Context, orderID uuid.UUID) error {
	const op = "dispatch.Producer.DispatchOrder"

	job := OrderJob{
		OrderID:      orderID,
		DispatchedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(orderID.String()),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("%s: send: %w", op, err)
	}

	logger.Debug(ctx, "order job dispatched",
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)

	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
