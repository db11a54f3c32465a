package kafka

import (
	"context"
	"fmt"
	"time"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/ururulab/imageingest/internal/config"
	"github.com/ururulab/imageingest/internal/domain"
)

// Producer publishes upload tasks to Kafka. It implements
// domain.TaskQueue so intake does not care whether the pool runs in
// this process or in the worker binary.
type Producer struct {
	client *wbfkafka.Producer
	topic  string
}

func NewProducer(cfg *config.KafkaConfig) *Producer {
	client := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)
	zlog.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka task producer initialized")
	return &Producer{
		client: client,
		topic:  cfg.Topic,
	}
}

func (p *Producer) Enqueue(ctx context.Context, task *domain.UploadTask) error {
	data, err := encodeTask(task)
	if err != nil {
		zlog.Logger.Error().Err(err).
			Str("task_id", task.ID).
			Int64("owner_id", task.OwnerID).
			Msg("failed to encode upload task")
		return fmt.Errorf("encode upload task: %w", err)
	}

	strategy := retry.Strategy{
		Attempts: 3,
		Delay:    2 * time.Second,
		Backoff:  2.0,
	}
	if err := p.client.SendWithRetry(ctx, strategy, nil, data); err != nil {
		zlog.Logger.Error().Err(err).
			Str("task_id", task.ID).
			Int64("owner_id", task.OwnerID).
			Msg("failed to publish upload task")
		return fmt.Errorf("publish upload task: %w", err)
	}

	zlog.Logger.Info().
		Str("task_id", task.ID).
		Int64("owner_id", task.OwnerID).
		Int("count", len(task.Items)).
		Msg("upload task published to Kafka")
	return nil
}

func (p *Producer) Close() error {
	if err := p.client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka producer")
		return err
	}
	zlog.Logger.Info().Msg("Kafka producer closed successfully")
	return nil
}
