package domain

import "errors"

var (
	ErrTooManyItems      = errors.New("too many images in one submission")
	ErrValidationFailed  = errors.New("image validation failed")
	ErrPayloadUnreadable = errors.New("image payload is unreadable")
	ErrStagingFailed     = errors.New("failed to stage image payload")
	ErrOwnerNotFound     = errors.New("owner not found")
	ErrObjectNotFound    = errors.New("object not found in storage")
	ErrQueueClosed       = errors.New("upload task queue is closed")
)
