package kafka

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ururulab/imageingest/internal/domain"
	"github.com/ururulab/imageingest/internal/staging"
)

func stagedTask(t *testing.T, m *staging.Manager) *domain.UploadTask {
	t.Helper()
	task := &domain.UploadTask{ID: "task-1", OwnerID: 9}
	for i, content := range []string{"first image", "second image"} {
		handle, err := m.Stage(bytes.NewReader([]byte(content)))
		require.NoError(t, err)
		task.Items = append(task.Items, domain.StagedItem{
			OwnerID:       9,
			OriginalName:  "photo.jpg",
			Handle:        handle,
			ContentHash:   "deadbeefdeadbeef",
			SequenceIndex: i + 1,
			ContentType:   "image/jpeg",
			Size:          handle.Size(),
			Meta:          domain.ImageMeta{Format: "jpeg", Width: 640, Height: 480},
		})
	}
	return task
}

func TestEncodeDecodeTask(t *testing.T) {
	dir := t.TempDir()
	producerSide, err := staging.NewManager(dir)
	require.NoError(t, err)
	consumerSide, err := staging.NewManager(dir)
	require.NoError(t, err)

	task := stagedTask(t, producerSide)
	data, err := encodeTask(task)
	require.NoError(t, err)

	decoded, missing, err := decodeTask(data, consumerSide)
	require.NoError(t, err)
	require.Empty(t, missing)
	require.Equal(t, task.ID, decoded.ID)
	require.Equal(t, task.OwnerID, decoded.OwnerID)
	require.Len(t, decoded.Items, 2)

	for i, item := range decoded.Items {
		orig := task.Items[i]
		require.Equal(t, orig.SequenceIndex, item.SequenceIndex)
		require.Equal(t, orig.ContentHash, item.ContentHash)
		require.Equal(t, orig.Size, item.Size)
		require.Equal(t, orig.Meta, item.Meta)
		require.Equal(t, orig.Handle.Path(), item.Handle.Path())
	}

	// Consumer-side release removes the shared artifact.
	decoded.Items[0].Handle.Release()
	_, err = os.Stat(task.Items[0].Handle.Path())
	require.True(t, os.IsNotExist(err))
}

func TestDecodeTaskDropsMissingArtifacts(t *testing.T) {
	dir := t.TempDir()
	producerSide, err := staging.NewManager(dir)
	require.NoError(t, err)
	consumerSide, err := staging.NewManager(dir)
	require.NoError(t, err)

	task := stagedTask(t, producerSide)
	data, err := encodeTask(task)
	require.NoError(t, err)

	// Simulate an artifact lost between publish and consume.
	require.NoError(t, os.Remove(task.Items[0].Handle.Path()))

	decoded, missing, err := decodeTask(data, consumerSide)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	require.Len(t, decoded.Items, 1)
	require.Equal(t, 2, decoded.Items[0].SequenceIndex)
}

func TestDecodeTaskRejectsGarbage(t *testing.T) {
	m, err := staging.NewManager(t.TempDir())
	require.NoError(t, err)

	_, _, err = decodeTask([]byte("not json"), m)
	require.Error(t, err)

	_, _, err = decodeTask([]byte(`{"task_id":"","owner_id":0}`), m)
	require.Error(t, err)
}
