package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"github.com/ururulab/imageingest/internal/config"
	"github.com/ururulab/imageingest/internal/domain"
	"github.com/ururulab/imageingest/internal/helpers"
	infradatabase "github.com/ururulab/imageingest/internal/infrastructure/database"
	"github.com/ururulab/imageingest/internal/infrastructure/kafka"
	"github.com/ururulab/imageingest/internal/infrastructure/storage"
	"github.com/ururulab/imageingest/internal/observability"
	"github.com/ururulab/imageingest/internal/queue"
	"github.com/ururulab/imageingest/internal/repository/postgres"
	"github.com/ururulab/imageingest/internal/retry"
	"github.com/ururulab/imageingest/internal/staging"
	"github.com/ururulab/imageingest/internal/usecase"
	"github.com/ururulab/imageingest/internal/worker"
)

func main() {
	zlog.Init()
	zlog.Logger.Info().Msg("Starting Image Ingest Upload Worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load("")
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Queue.Mode != "kafka" {
		zlog.Logger.Fatal().Str("mode", cfg.Queue.Mode).Msg("worker binary requires queue.mode=kafka")
	}

	connectRetries := cfg.Database.ConnectRetries
	connectDelay := cfg.Database.ConnectRetryDelaySec
	if connectRetries == 0 {
		connectRetries = 15
	}
	if connectDelay == 0 {
		connectDelay = 3
	}

	slaves := []string{}
	if strings.TrimSpace(cfg.Database.Slaves) != "" {
		slaves = helpers.SplitAndTrim(cfg.Database.Slaves, ",")
	}
	dbOpts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetimeSec) * time.Second,
	}

	database, err := infradatabase.ConnectWithRetries(cfg.Database.DSN, slaves, dbOpts, connectRetries, connectDelay)
	if err != nil || database == nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database after all retries")
	}

	zlog.Logger.Info().Msg("Running database migrations...")
	if err := infradatabase.RunMigrations(database, cfg.Migrations.Path); err != nil {
		zlog.Logger.Warn().Err(err).Msg("Migrations warning (might be already applied)")
	}

	objectStore, err := storage.New(&cfg.Storage)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize object store")
	}

	stagingManager, err := staging.NewManager(cfg.Staging.Dir)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize staging manager")
	}

	sink := observability.NewLogSink()
	owners := postgres.NewOwnerRepository(database, retry.DefaultStrategy)
	finalizer := usecase.NewFinalizeUsecase(owners, sink)

	policy := retry.Policy{
		MaxAttempts: cfg.Pipeline.RetryMaxAttempts,
		BaseDelay:   time.Duration(cfg.Pipeline.RetryBaseDelayMS) * time.Millisecond,
		Multiplier:  cfg.Pipeline.RetryMultiplier,
		MaxDelay:    time.Duration(cfg.Pipeline.RetryMaxDelayMS) * time.Millisecond,
	}

	memQueue := queue.NewMemory(cfg.Queue.Size)
	pool := worker.NewPool(worker.Config{
		Workers:        cfg.Pipeline.WorkerCount,
		AttemptTimeout: time.Duration(cfg.Pipeline.AttemptTimeoutSec) * time.Second,
		KeyPrefix:      cfg.Pipeline.UploadKeyPrefix,
		Policy:         policy,
		Classify:       storage.Classify,
	}, memQueue, objectStore, finalizer, sink)

	poolCtx, poolCancel := context.WithCancel(context.Background())
	defer poolCancel()
	pool.Start(poolCtx)

	consumer, err := kafka.NewConsumer(&cfg.Kafka, stagingManager, func(ctx context.Context, task *domain.UploadTask) error {
		return memQueue.Enqueue(ctx, task)
	})
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize Kafka consumer")
	}
	defer consumer.Close()

	go func() {
		if err := consumer.Start(ctx); err != nil {
			zlog.Logger.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("Shutdown signal received")

	memQueue.Close()
	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
		zlog.Logger.Info().Msg("upload worker pool drained")
	case <-time.After(30 * time.Second):
		zlog.Logger.Warn().Msg("drain timeout, abandoning in-flight uploads")
		poolCancel()
	}

	if database != nil && database.Master != nil {
		database.Master.Close()
		for _, s := range database.Slaves {
			if s != nil {
				s.Close()
			}
		}
	}

	zlog.Logger.Info().Msg("Worker shutdown complete")
}
