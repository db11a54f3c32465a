package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/wb-go/wbf/zlog"

	"github.com/ururulab/imageingest/internal/config"
	"github.com/ururulab/imageingest/internal/domain"
)

// localStore is a development backend writing objects under a base dir.
type localStore struct {
	basePath string
	baseURL  string
}

func NewLocalStore(cfg *config.StorageConfig) (domain.ObjectStore, error) {
	if cfg.LocalPath == "" {
		return nil, fmt.Errorf("LocalPath is empty, set storage.local_path in config or env")
	}
	if err := os.MkdirAll(cfg.LocalPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = "file://" + cfg.LocalPath
	}

	return &localStore{
		basePath: cfg.LocalPath,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *localStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if r == nil {
		return "", fmt.Errorf("reader is nil")
	}

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}

	tmpPath := fullPath + ".part"
	f, err := os.Create(tmpPath)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to create object file")
		return "", fmt.Errorf("create object %s: %w", key, err)
	}

	written, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to write object file")
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("finalize object %s: %w", key, err)
	}

	url := s.baseURL + "/" + key
	zlog.Logger.Info().
		Str("object", key).
		Int64("bytes", written).
		Msg("object saved to local store")
	return url, nil
}

func (s *localStore) Remove(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			zlog.Logger.Warn().Str("object", key).Msg("object not found, skipping delete")
			return nil
		}
		zlog.Logger.Error().Err(err).Str("object", key).Msg("failed to delete object")
		return fmt.Errorf("delete object %s: %w", key, err)
	}

	zlog.Logger.Info().Str("object", key).Msg("object deleted from local store")
	return nil
}
