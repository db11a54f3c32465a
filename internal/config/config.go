package config

import (
	"fmt"
	"os"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Migrations MigrationsConfig `mapstructure:"migrations"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Staging    StagingConfig    `mapstructure:"staging"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr               string `mapstructure:"addr"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec"`
	ReadTimeoutSec     int    `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec    int    `mapstructure:"write_timeout_sec"`
	MaxUploadSizeMB    int    `mapstructure:"max_upload_size_mb"`
}

type DatabaseConfig struct {
	DSN                  string `mapstructure:"dsn"`
	Slaves               string `mapstructure:"slaves"`
	MaxOpenConns         int    `mapstructure:"max_open_conns"`
	MaxIdleConns         int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSec   int    `mapstructure:"conn_max_lifetime_sec"`
	ConnectRetries       int    `mapstructure:"connect_retries"`
	ConnectRetryDelaySec int    `mapstructure:"connect_retry_delay_sec"`
}

type MigrationsConfig struct {
	Path string `mapstructure:"path"`
}

type KafkaConfig struct {
	Brokers              []string `mapstructure:"brokers"`
	Topic                string   `mapstructure:"topic"`
	GroupID              string   `mapstructure:"group_id"`
	SessionTimeoutSec    int      `mapstructure:"session_timeout_sec"`
	HeartbeatIntervalSec int      `mapstructure:"heartbeat_interval_sec"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	PublicBaseURL string `mapstructure:"public_base_url"`

	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region"`
	S3UseSSL    bool   `mapstructure:"s3_use_ssl"`
}

type StagingConfig struct {
	// Dir holds staging artifacts. In kafka mode it must be a volume
	// shared between the api and worker binaries.
	Dir string `mapstructure:"dir"`
}

type QueueConfig struct {
	// Mode is "inprocess" (api binary runs the worker pool) or "kafka"
	// (api publishes tasks, the worker binary consumes them).
	Mode string `mapstructure:"mode"`
	Size int    `mapstructure:"size"`
}

type PipelineConfig struct {
	MaxImagesPerUpload int      `mapstructure:"max_images_per_upload"`
	MaxFileSizeMB      int      `mapstructure:"max_file_size_mb"`
	SupportedFormats   []string `mapstructure:"supported_formats"`
	WorkerCount        int      `mapstructure:"worker_count"`
	UploadKeyPrefix    string   `mapstructure:"upload_key_prefix"`

	RetryMaxAttempts  int     `mapstructure:"retry_max_attempts"`
	RetryBaseDelayMS  int     `mapstructure:"retry_base_delay_ms"`
	RetryMultiplier   float64 `mapstructure:"retry_multiplier"`
	RetryMaxDelayMS   int     `mapstructure:"retry_max_delay_ms"`
	AttemptTimeoutSec int     `mapstructure:"attempt_timeout_sec"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func Load(path string) (*Config, error) {
	cfg := config.New()

	configPath := path
	if configPath == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			configPath = "config.yaml"
		} else if _, err := os.Stat("/app/config.yaml"); err == nil {
			configPath = "/app/config.yaml"
		} else {
			return nil, fmt.Errorf("config.yaml not found")
		}
	}

	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = ""
	}

	if err := cfg.Load(configPath, envPath, "APP"); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	appConfig := &Config{}
	if err := cfg.Unmarshal(appConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(appConfig)

	if err := validateConfig(appConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	zlog.Logger.Info().
		Str("queue_mode", appConfig.Queue.Mode).
		Str("staging_dir", appConfig.Staging.Dir).
		Int("worker_count", appConfig.Pipeline.WorkerCount).
		Int("max_images_per_upload", appConfig.Pipeline.MaxImagesPerUpload).
		Msg("Config loaded successfully via wbf")

	return appConfig, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Queue.Mode == "" {
		cfg.Queue.Mode = "inprocess"
	}
	if cfg.Queue.Size == 0 {
		cfg.Queue.Size = 64
	}
	if cfg.Pipeline.MaxImagesPerUpload == 0 {
		cfg.Pipeline.MaxImagesPerUpload = 10
	}
	if cfg.Pipeline.WorkerCount == 0 {
		cfg.Pipeline.WorkerCount = 4
	}
	if cfg.Pipeline.UploadKeyPrefix == "" {
		cfg.Pipeline.UploadKeyPrefix = "detail"
	}
	if cfg.Pipeline.RetryMaxAttempts == 0 {
		cfg.Pipeline.RetryMaxAttempts = 3
	}
	if cfg.Pipeline.RetryBaseDelayMS == 0 {
		cfg.Pipeline.RetryBaseDelayMS = 1000
	}
	if cfg.Pipeline.RetryMultiplier == 0 {
		cfg.Pipeline.RetryMultiplier = 2.0
	}
	if cfg.Pipeline.RetryMaxDelayMS == 0 {
		cfg.Pipeline.RetryMaxDelayMS = 10000
	}
	if cfg.Pipeline.AttemptTimeoutSec == 0 {
		cfg.Pipeline.AttemptTimeoutSec = 30
	}
}

func validateConfig(cfg *Config) error {
	// Server
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if cfg.Server.ShutdownTimeoutSec <= 0 {
		return fmt.Errorf("server.shutdown_timeout_sec must be positive")
	}
	if cfg.Server.ReadTimeoutSec <= 0 {
		return fmt.Errorf("server.read_timeout_sec must be positive")
	}
	if cfg.Server.WriteTimeoutSec <= 0 {
		return fmt.Errorf("server.write_timeout_sec must be positive")
	}
	if cfg.Server.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("server.max_upload_size_mb must be positive")
	}

	// Database
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if cfg.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if cfg.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns must be non-negative")
	}

	// Migrations
	if cfg.Migrations.Path == "" {
		return fmt.Errorf("migrations.path is required")
	}

	// Queue
	if cfg.Queue.Mode != "inprocess" && cfg.Queue.Mode != "kafka" {
		return fmt.Errorf("queue.mode must be 'inprocess' or 'kafka'")
	}
	if cfg.Queue.Mode == "kafka" {
		if len(cfg.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers must contain at least one broker")
		}
		if cfg.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required")
		}
		if cfg.Kafka.GroupID == "" {
			return fmt.Errorf("kafka.group_id is required")
		}
	}

	// Storage
	if cfg.Storage.Type == "" {
		return fmt.Errorf("storage.type is required (local|s3)")
	}
	if cfg.Storage.Type != "local" && cfg.Storage.Type != "s3" {
		return fmt.Errorf("storage.type must be 'local' or 's3'")
	}
	if cfg.Storage.Type == "local" && cfg.Storage.LocalPath == "" {
		return fmt.Errorf("storage.local_path is required for local storage")
	}
	if cfg.Storage.Type == "s3" {
		if cfg.Storage.S3Endpoint == "" {
			return fmt.Errorf("storage.s3_endpoint is required for s3 storage")
		}
		if cfg.Storage.S3Bucket == "" {
			return fmt.Errorf("storage.s3_bucket is required for s3 storage")
		}
		if cfg.Storage.S3AccessKey == "" || cfg.Storage.S3SecretKey == "" {
			return fmt.Errorf("storage.s3_access_key and storage.s3_secret_key are required for s3 storage")
		}
	}

	// Staging
	if cfg.Staging.Dir == "" {
		return fmt.Errorf("staging.dir is required")
	}

	// Pipeline
	if cfg.Pipeline.MaxFileSizeMB <= 0 {
		return fmt.Errorf("pipeline.max_file_size_mb must be positive")
	}
	if len(cfg.Pipeline.SupportedFormats) == 0 {
		return fmt.Errorf("pipeline.supported_formats must contain at least one format")
	}
	if cfg.Pipeline.WorkerCount <= 0 {
		return fmt.Errorf("pipeline.worker_count must be positive")
	}
	if cfg.Pipeline.RetryMultiplier < 1 {
		return fmt.Errorf("pipeline.retry_multiplier must be >= 1")
	}

	if cfg.Logging.Level == "" {
		return fmt.Errorf("logging.level is required")
	}

	return nil
}
