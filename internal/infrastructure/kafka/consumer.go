package kafka

import (
	"context"
	"time"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/ururulab/imageingest/internal/config"
	"github.com/ururulab/imageingest/internal/domain"
	"github.com/ururulab/imageingest/internal/staging"
)

// TaskHandler receives one decoded upload task.
type TaskHandler func(ctx context.Context, task *domain.UploadTask) error

// Consumer reads upload tasks from Kafka, re-issues staging handles via
// the local manager and hands tasks to the handler. A message is only
// committed after the handler returns.
type Consumer struct {
	client  *wbfkafka.Consumer
	manager *staging.Manager
	handler TaskHandler
	topic   string
}

func NewConsumer(cfg *config.KafkaConfig, manager *staging.Manager, handler TaskHandler) (*Consumer, error) {
	client := wbfkafka.NewConsumer(cfg.Brokers, cfg.Topic, cfg.GroupID)

	zlog.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("group_id", cfg.GroupID).
		Msg("Kafka task consumer initialized")

	return &Consumer{
		client:  client,
		manager: manager,
		handler: handler,
		topic:   cfg.Topic,
	}, nil
}

func (c *Consumer) Start(ctx context.Context) error {
	strategy := retry.Strategy{
		Attempts: 3,
		Delay:    2 * time.Second,
		Backoff:  2.0,
	}

	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("Kafka consumer stopped")
			return nil
		default:
			msg, err := c.client.FetchWithRetry(ctx, strategy)
			if err != nil {
				zlog.Logger.Error().Err(err).Msg("Failed to fetch Kafka message")
				time.Sleep(time.Second)
				continue
			}

			task, missing, err := decodeTask(msg.Value, c.manager)
			if err != nil {
				zlog.Logger.Error().Err(err).
					Bytes("msg", msg.Value).
					Msg("Failed to decode upload task, skipping message")
				_ = c.client.Commit(ctx, msg)
				continue
			}
			if len(missing) > 0 {
				zlog.Logger.Warn().
					Str("task_id", task.ID).
					Strs("missing", missing).
					Msg("some staging artifacts are gone, their items are dropped")
			}

			zlog.Logger.Info().
				Str("task_id", task.ID).
				Int64("owner_id", task.OwnerID).
				Int("count", len(task.Items)).
				Msg("Received upload task")

			if err := c.handler(ctx, task); err != nil {
				zlog.Logger.Error().Err(err).
					Str("task_id", task.ID).
					Msg("Task handling failed")
				continue
			}

			if err := c.client.Commit(ctx, msg); err != nil {
				zlog.Logger.Error().Err(err).
					Str("task_id", task.ID).
					Msg("Failed to commit message")
				continue
			}
		}
	}
}

func (c *Consumer) Close() error {
	if err := c.client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka consumer")
		return err
	}
	zlog.Logger.Info().Msg("Kafka consumer closed successfully")
	return nil
}
