package domain

import (
	"io"
)

// UploadItem is one already-validated binary payload handed to intake.
// Payload must be replayable (multipart form files are), because it is
// read more than once: validation, fingerprinting, staging.
type UploadItem struct {
	OriginalName string
	ContentType  string
	Size         int64
	Payload      io.ReadSeeker
}

// ImageMeta is what validation learns about a payload.
type ImageMeta struct {
	Format string
	Width  int
	Height int
}

// StagingHandle is an exclusively-owned transient copy of a payload.
// Release frees the underlying resource and is safe to call more than
// once; every issued handle must be released on every exit path.
type StagingHandle interface {
	Path() string
	Size() int64
	Open() (io.ReadCloser, error)
	Release()
}

// StagedItem is one item of an upload task. SequenceIndex is 1-based
// and assigned in submission order at intake time.
type StagedItem struct {
	OwnerID       int64
	OriginalName  string
	Handle        StagingHandle
	ContentHash   string
	SequenceIndex int
	ContentType   string
	Size          int64
	Meta          ImageMeta
}

// UploadTask is the unit of work between intake and the worker pool.
// Exactly one worker owns a task at a time.
type UploadTask struct {
	ID      string
	OwnerID int64
	Items   []StagedItem
}

// UploadOutcome is the per-item result of a task. Err == nil means the
// durable write succeeded and URL is set.
type UploadOutcome struct {
	Item             StagedItem
	URL              string
	Err              error
	RetriesExhausted bool
}

func (o UploadOutcome) Succeeded() bool {
	return o.Err == nil
}
