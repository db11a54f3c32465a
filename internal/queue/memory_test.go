package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ururulab/imageingest/internal/domain"
)

func task(id string) *domain.UploadTask {
	return &domain.UploadTask{ID: id, OwnerID: 1}
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := NewMemory(4)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, task("a")))
	require.NoError(t, q.Enqueue(ctx, task("b")))

	require.Equal(t, "a", (<-q.Dequeue()).ID)
	require.Equal(t, "b", (<-q.Dequeue()).ID)
}

func TestEnqueueBlocksWhenFull(t *testing.T) {
	q := NewMemory(1)
	require.NoError(t, q.Enqueue(context.Background(), task("a")))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, task("b"))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Room frees up once a consumer takes a task.
	<-q.Dequeue()
	require.NoError(t, q.Enqueue(context.Background(), task("b")))
}

func TestCloseRejectsNewTasksButKeepsBuffered(t *testing.T) {
	q := NewMemory(2)
	require.NoError(t, q.Enqueue(context.Background(), task("a")))

	q.Close()
	q.Close() // idempotent

	err := q.Enqueue(context.Background(), task("b"))
	require.ErrorIs(t, err, domain.ErrQueueClosed)

	select {
	case <-q.Done():
	default:
		t.Fatal("Done must be closed after Close")
	}

	require.Equal(t, 1, q.Len())
	require.Equal(t, "a", (<-q.Dequeue()).ID)
}
