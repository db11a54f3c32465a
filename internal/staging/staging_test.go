package staging

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ururulab/imageingest/internal/domain"
)

func TestStageAndRelease(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)

	content := []byte("staged image bytes")
	handle, err := m.Stage(bytes.NewReader(content))
	require.NoError(t, err)
	require.Equal(t, int64(len(content)), handle.Size())
	require.Equal(t, int64(1), m.Issued())
	require.Equal(t, int64(1), m.InFlight())

	f, err := handle.Open()
	require.NoError(t, err)
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Equal(t, content, got)

	handle.Release()
	_, err = os.Stat(handle.Path())
	require.True(t, os.IsNotExist(err))
	require.Equal(t, int64(1), m.Released())
	require.Equal(t, int64(0), m.InFlight())
}

func TestReleaseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)

	handle, err := m.Stage(bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	handle.Release()
	handle.Release()
	handle.Release()

	require.Equal(t, int64(1), m.Released())
	require.Equal(t, int64(0), m.InFlight())
}

func TestReleaseAfterFileGone(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)

	handle, err := m.Stage(bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	require.NoError(t, os.Remove(handle.Path()))

	// Must not panic or double-count.
	handle.Release()
	require.Equal(t, int64(1), m.Released())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestStageUnreadablePayloadLeavesNothingBehind(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)

	_, err = m.Stage(failingReader{})
	require.ErrorIs(t, err, domain.ErrPayloadUnreadable)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
	require.Equal(t, int64(0), m.Issued())
}

func TestStageNilPayload(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	_, err = m.Stage(nil)
	require.ErrorIs(t, err, domain.ErrPayloadUnreadable)
}

func TestAdopt(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "foreign.img")
	require.NoError(t, os.WriteFile(path, []byte("staged elsewhere"), 0o644))

	handle, err := m.Adopt(path)
	require.NoError(t, err)
	require.Equal(t, int64(16), handle.Size())
	require.Equal(t, int64(1), m.Issued())

	handle.Release()
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
	require.Equal(t, int64(0), m.InFlight())
}

func TestAdoptMissingFile(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	_, err = m.Adopt(filepath.Join(t.TempDir(), "nope.img"))
	require.Error(t, err)
	require.Equal(t, int64(0), m.Issued())
}
