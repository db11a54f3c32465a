package worker

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/ururulab/imageingest/internal/domain"
	"github.com/ururulab/imageingest/internal/queue"
	"github.com/ururulab/imageingest/internal/retry"
)

// Config bounds the pool and shapes per-item upload behavior.
type Config struct {
	Workers        int
	AttemptTimeout time.Duration
	KeyPrefix      string
	Policy         retry.Policy
	Classify       retry.Classifier
}

// Pool is the bounded-concurrency consumer of upload tasks. Each worker
// owns one task start to finish; items inside a task are processed
// sequentially, so the persisted display order always matches the
// submission order. A failed item never aborts its siblings.
type Pool struct {
	cfg       Config
	tasks     *queue.Memory
	store     domain.ObjectStore
	finalizer domain.Finalizer
	sink      domain.EventSink
	wg        sync.WaitGroup
}

func NewPool(
	cfg Config,
	tasks *queue.Memory,
	store domain.ObjectStore,
	finalizer domain.Finalizer,
	sink domain.EventSink,
) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "detail"
	}
	return &Pool{
		cfg:       cfg,
		tasks:     tasks,
		store:     store,
		finalizer: finalizer,
		sink:      sink,
	}
}

// Start launches the workers. They run until the queue is closed and
// drained; a dequeued task always runs to completion.
func (p *Pool) Start(ctx context.Context) {
	zlog.Logger.Info().Int("workers", p.cfg.Workers).Msg("starting upload worker pool")
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, id)
		}(i)
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, id int) {
	for {
		select {
		case task := <-p.tasks.Dequeue():
			p.process(ctx, task)
		case <-p.tasks.Done():
			// Drain what was buffered before shutdown, then exit.
			for {
				select {
				case task := <-p.tasks.Dequeue():
					p.process(ctx, task)
				default:
					zlog.Logger.Info().Int("worker_id", id).Msg("upload worker stopped")
					return
				}
			}
		}
	}
}

func (p *Pool) process(ctx context.Context, task *domain.UploadTask) {
	zlog.Logger.Info().
		Str("task_id", task.ID).
		Int64("owner_id", task.OwnerID).
		Int("count", len(task.Items)).
		Msg("processing upload task")

	outcomes := make([]domain.UploadOutcome, 0, len(task.Items))
	for _, item := range task.Items {
		outcomes = append(outcomes, p.uploadItem(ctx, item))
	}

	if err := p.finalizer.Finalize(ctx, task.OwnerID, outcomes); err != nil {
		zlog.Logger.Error().Err(err).
			Str("task_id", task.ID).
			Int64("owner_id", task.OwnerID).
			Msg("finalize failed")
	}
}

// uploadItem performs the retry-wrapped durable write for one item. The
// staging handle is released on every path before the next item starts.
func (p *Pool) uploadItem(ctx context.Context, item domain.StagedItem) domain.UploadOutcome {
	defer item.Handle.Release()

	key := uploadKey(p.cfg.KeyPrefix, item)

	url, err := retry.Do(ctx, p.cfg.Policy, p.cfg.Classify, func(ctx context.Context, attempt int) (string, error) {
		p.sink.UploadAttempt(item.OwnerID, item.SequenceIndex, attempt)

		f, err := item.Handle.Open()
		if err != nil {
			return "", err
		}
		defer f.Close()

		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.AttemptTimeout)
		defer cancel()
		return p.store.Put(attemptCtx, key, f, item.Handle.Size(), item.ContentType)
	})

	if err != nil {
		exhausted := retry.Exhausted(err)
		p.sink.UploadFailed(item.OwnerID, item.SequenceIndex, exhausted, err)
		return domain.UploadOutcome{
			Item:             item,
			Err:              err,
			RetriesExhausted: exhausted,
		}
	}

	p.sink.UploadSucceeded(item.OwnerID, item.SequenceIndex, url)
	return domain.UploadOutcome{Item: item, URL: url}
}

// uploadKey is deterministic per item: owner, sequence index and
// content hash, no wall-clock component. A retried attempt that
// partially succeeded server-side overwrites the same object instead of
// leaving a duplicate under another key.
func uploadKey(prefix string, item domain.StagedItem) string {
	hash := item.ContentHash
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return path.Join(prefix, fmt.Sprintf("%d", item.OwnerID),
		fmt.Sprintf("%d_%s%s", item.SequenceIndex, hash, extFor(item)))
}

func extFor(item domain.StagedItem) string {
	switch item.Meta.Format {
	case "jpeg":
		return ".jpg"
	case "":
		return ""
	default:
		return "." + item.Meta.Format
	}
}
