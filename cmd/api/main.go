package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/ururulab/imageingest/internal/config"
	"github.com/ururulab/imageingest/internal/domain"
	httpHandler "github.com/ururulab/imageingest/internal/handler/http"
	"github.com/ururulab/imageingest/internal/handler/middleware"
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
	"github.com/ururulab/imageingest/internal/validation"
	"github.com/ururulab/imageingest/internal/worker"
)

func main() {
	zlog.Init()
	zlog.Logger.Info().Msg("Starting Image Ingest API Server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load("")
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to load config")
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
		zlog.Logger.Fatal().Err(err).Msg("Migrations failed")
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
	validator := validation.New(cfg.Pipeline.MaxFileSizeMB, cfg.Pipeline.SupportedFormats)
	owners := postgres.NewOwnerRepository(database, retry.DefaultStrategy)
	finalizer := usecase.NewFinalizeUsecase(owners, sink)

	policy := retry.Policy{
		MaxAttempts: cfg.Pipeline.RetryMaxAttempts,
		BaseDelay:   time.Duration(cfg.Pipeline.RetryBaseDelayMS) * time.Millisecond,
		Multiplier:  cfg.Pipeline.RetryMultiplier,
		MaxDelay:    time.Duration(cfg.Pipeline.RetryMaxDelayMS) * time.Millisecond,
	}

	// Upload tasks either stay in this process (bounded channel + local
	// worker pool) or travel over Kafka to the worker binary.
	var taskQueue domain.TaskQueue
	var memQueue *queue.Memory
	var pool *worker.Pool
	poolCtx, poolCancel := context.WithCancel(context.Background())
	defer poolCancel()

	switch cfg.Queue.Mode {
	case "kafka":
		producer := kafka.NewProducer(&cfg.Kafka)
		defer producer.Close()
		taskQueue = producer
	default:
		memQueue = queue.NewMemory(cfg.Queue.Size)
		pool = worker.NewPool(worker.Config{
			Workers:        cfg.Pipeline.WorkerCount,
			AttemptTimeout: time.Duration(cfg.Pipeline.AttemptTimeoutSec) * time.Second,
			KeyPrefix:      cfg.Pipeline.UploadKeyPrefix,
			Policy:         policy,
			Classify:       storage.Classify,
		}, memQueue, objectStore, finalizer, sink)
		pool.Start(poolCtx)
		taskQueue = memQueue
	}

	intake := usecase.NewIntakeUsecase(validator, stagingManager, taskQueue, sink, cfg.Pipeline.MaxImagesPerUpload)

	engine := ginext.New("api")
	engine.Use(
		middleware.ErrorHandlerMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.CORSMiddleware(),
	)

	engine.GET("/health", func(c *ginext.Context) {
		c.JSON(http.StatusOK, ginext.H{"status": "ok"})
	})

	uploadHandler := httpHandler.NewUploadHandler(intake, owners, cfg.Server.MaxUploadSizeMB)
	uploadHandler.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Logger.Fatal().Err(err).Msg("Failed to start API server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	} else {
		zlog.Logger.Info().Msg("HTTP server stopped gracefully")
	}

	// Drain in-process tasks: dequeued tasks always run to completion,
	// so wait for the pool rather than cancel mid-upload.
	if memQueue != nil && pool != nil {
		memQueue.Close()
		done := make(chan struct{})
		go func() {
			pool.Wait()
			close(done)
		}()
		select {
		case <-done:
			zlog.Logger.Info().Msg("upload worker pool drained")
		case <-shutdownCtx.Done():
			zlog.Logger.Warn().Msg("shutdown timeout, abandoning in-flight uploads")
			poolCancel()
		}
	}

	if database != nil && database.Master != nil {
		if err := database.Master.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("closing db master failed")
		} else {
			zlog.Logger.Info().Msg("db master closed")
		}
		for i, s := range database.Slaves {
			if s == nil {
				continue
			}
			if err := s.Close(); err != nil {
				zlog.Logger.Error().Err(err).Int("slave_index", i).Msg("closing db slave failed")
			}
		}
	}

	zlog.Logger.Info().Msg("API shutdown complete")
}
