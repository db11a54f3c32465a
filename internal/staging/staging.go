package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/ururulab/imageingest/internal/domain"
)

// Manager owns the staging area. Every artifact it issues is tracked by
// the issued/released counters so tests can assert that no handle ever
// leaks, whatever path a task takes.
type Manager struct {
	dir      string
	issued   atomic.Int64
	released atomic.Int64
}

func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("staging dir is empty, set staging.dir in config or env")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir %s: %w", dir, err)
	}
	return &Manager{dir: dir}, nil
}

// Stage copies the payload into a new staging artifact. The write is
// atomic: bytes go to a .part file first and the final name appears
// only after a successful rename, so a failed staging leaves nothing
// behind. Read errors on the payload itself come back wrapped as
// ErrPayloadUnreadable; everything else is a staging-area failure.
func (m *Manager) Stage(r io.Reader) (domain.StagingHandle, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil payload", domain.ErrPayloadUnreadable)
	}

	name := uuid.New().String()
	partPath := filepath.Join(m.dir, name+".part")
	finalPath := filepath.Join(m.dir, name+".img")

	f, err := os.OpenFile(partPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}

	written, err := io.Copy(f, &sourceReader{r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(partPath)
		var srcErr *payloadReadError
		if errors.As(err, &srcErr) {
			return nil, fmt.Errorf("%w: %v", domain.ErrPayloadUnreadable, srcErr.cause)
		}
		return nil, fmt.Errorf("write staging file: %w", err)
	}

	if err := os.Rename(partPath, finalPath); err != nil {
		_ = os.Remove(partPath)
		return nil, fmt.Errorf("finalize staging file: %w", err)
	}

	m.issued.Add(1)
	zlog.Logger.Debug().
		Str("path", finalPath).
		Int64("bytes", written).
		Msg("payload staged")

	return m.newHandle(finalPath, written), nil
}

// Adopt re-issues a handle for an artifact staged by another process
// (the API binary, when tasks travel over Kafka and the staging dir is
// a shared volume).
func (m *Manager) Adopt(path string) (domain.StagingHandle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("adopt staging file %s: %w", path, err)
	}
	m.issued.Add(1)
	return m.newHandle(path, info.Size()), nil
}

func (m *Manager) newHandle(path string, size int64) *Handle {
	return &Handle{
		path: path,
		size: size,
		onRelease: func() {
			m.released.Add(1)
		},
	}
}

// Issued reports how many handles this manager has ever handed out.
func (m *Manager) Issued() int64 { return m.issued.Load() }

// Released reports how many of them have been released.
func (m *Manager) Released() int64 { return m.released.Load() }

// InFlight is the number of live staging artifacts. Zero after every
// completed task is the central resource-safety invariant.
func (m *Manager) InFlight() int64 { return m.issued.Load() - m.released.Load() }

// Handle is an exclusively-owned staging artifact.
type Handle struct {
	path      string
	size      int64
	released  atomic.Bool
	onRelease func()
}

func (h *Handle) Path() string { return h.path }

func (h *Handle) Size() int64 { return h.size }

func (h *Handle) Open() (io.ReadCloser, error) {
	f, err := os.Open(h.path)
	if err != nil {
		return nil, fmt.Errorf("open staging file %s: %w", h.path, err)
	}
	return f, nil
}

// Release deletes the artifact. Idempotent: the second and later calls,
// or a call after the file is already gone, do nothing.
func (h *Handle) Release() {
	if !h.released.CompareAndSwap(false, true) {
		return
	}
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		zlog.Logger.Warn().Err(err).Str("path", h.path).Msg("failed to remove staging file")
	}
	if h.onRelease != nil {
		h.onRelease()
	}
}

// sourceReader tags read errors of the caller's payload so Stage can
// tell them apart from staging-area write errors.
type sourceReader struct {
	r io.Reader
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		return n, &payloadReadError{cause: err}
	}
	return n, err
}

type payloadReadError struct {
	cause error
}

func (e *payloadReadError) Error() string { return e.cause.Error() }

func (e *payloadReadError) Unwrap() error { return e.cause }
