package domain

import (
	"context"
	"io"
)

// IntakeService is the synchronous entry point of the pipeline. Submit
// returns as soon as the task is staged and enqueued; the caller never
// waits for durable writes.
type IntakeService interface {
	Submit(ctx context.Context, ownerID int64, items []UploadItem) error
}

// Validator checks a whole submission before anything is staged.
// One invalid item fails the entire submission with zero side effects.
type Validator interface {
	Validate(ctx context.Context, items []UploadItem) ([]ImageMeta, error)
}

// Stager materializes a payload into a staging artifact.
type Stager interface {
	Stage(r io.Reader) (StagingHandle, error)
}

// ObjectStore is the durable storage backend. Put returns the public
// URL of the stored object. Failures may be transient or terminal; the
// caller classifies them.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
}

// TaskQueue hands upload tasks from intake to the worker pool. Enqueue
// blocks when the queue is full (backpressure) until there is room or
// ctx is done.
type TaskQueue interface {
	Enqueue(ctx context.Context, task *UploadTask) error
}

// Finalizer collects per-item outcomes of a finished task, persists the
// successful subset and reports the failures.
type Finalizer interface {
	Finalize(ctx context.Context, ownerID int64, outcomes []UploadOutcome) error
}

// EventSink receives the structured events the pipeline emits. The
// request path never sees anything past intake; everything downstream
// is reconciled through this sink.
type EventSink interface {
	SubmissionAccepted(ownerID int64, count int)
	UploadAttempt(ownerID int64, sequenceIndex, attempt int)
	UploadSucceeded(ownerID int64, sequenceIndex int, url string)
	UploadFailed(ownerID int64, sequenceIndex int, retriesExhausted bool, cause error)
	BatchPartialFailure(ownerID int64, failedCount, totalCount int)
	OwnerMissing(ownerID int64, imageCount int)
}
