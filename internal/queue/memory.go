package queue

import (
	"context"
	"sync"

	"github.com/ururulab/imageingest/internal/domain"
)

// Memory is the bounded in-process task queue between intake and the
// worker pool. A full queue makes Enqueue block (backpressure) instead
// of growing without limit.
type Memory struct {
	ch        chan *domain.UploadTask
	done      chan struct{}
	closeOnce sync.Once
}

func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 1
	}
	return &Memory{
		ch:   make(chan *domain.UploadTask, size),
		done: make(chan struct{}),
	}
}

func (q *Memory) Enqueue(ctx context.Context, task *domain.UploadTask) error {
	select {
	case <-q.done:
		return domain.ErrQueueClosed
	default:
	}

	select {
	case q.ch <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return domain.ErrQueueClosed
	}
}

// Dequeue exposes the consumer side. Tasks buffered before Close stay
// consumable; consumers watch Done to know when to drain and stop.
func (q *Memory) Dequeue() <-chan *domain.UploadTask {
	return q.ch
}

// Done is closed once the queue is shut down.
func (q *Memory) Done() <-chan struct{} {
	return q.done
}

// Close rejects further enqueues. Already-buffered tasks remain in the
// channel for consumers to drain.
func (q *Memory) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}

// Len reports how many tasks are currently buffered.
func (q *Memory) Len() int {
	return len(q.ch)
}
