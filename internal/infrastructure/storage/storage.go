package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/minio/minio-go/v7"
	"github.com/wb-go/wbf/zlog"

	"github.com/ururulab/imageingest/internal/config"
	"github.com/ururulab/imageingest/internal/domain"
	"github.com/ururulab/imageingest/internal/retry"
)

// New selects the ObjectStore implementation from config.
func New(cfg *config.StorageConfig) (domain.ObjectStore, error) {
	switch cfg.Type {
	case "local":
		zlog.Logger.Info().Msg("Initializing local object store")
		return NewLocalStore(cfg)
	case "s3":
		zlog.Logger.Info().Msg("Initializing S3 object store")
		return NewS3Store(cfg)
	default:
		zlog.Logger.Error().Str("type", cfg.Type).Msg("Unsupported storage type, use 'local' or 's3'")
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// s3 error codes worth another attempt. Anything not recognized here is
// treated as terminal.
var transientS3Codes = map[string]struct{}{
	"SlowDown":            {},
	"RequestTimeout":      {},
	"Throttling":          {},
	"ThrottlingException": {},
	"InternalError":       {},
	"ServiceUnavailable":  {},
}

// Classify maps a Put failure to the retry taxonomy: attempt timeouts,
// network hiccups and storage throttling are retryable, everything else
// (bad request, access denied, missing bucket, local disk errors) is
// terminal.
func Classify(err error) retry.Class {
	if err == nil {
		return retry.Terminal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return retry.Retryable
	}
	if errors.Is(err, context.Canceled) {
		return retry.Terminal
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return retry.Retryable
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return retry.Retryable
	}

	resp := minio.ToErrorResponse(err)
	if resp.Code != "" {
		if _, ok := transientS3Codes[resp.Code]; ok {
			return retry.Retryable
		}
		if resp.StatusCode >= 500 {
			return retry.Retryable
		}
		return retry.Terminal
	}

	return retry.Terminal
}
