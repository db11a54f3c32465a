package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/ururulab/imageingest/internal/domain"
	"github.com/ururulab/imageingest/internal/fingerprint"
)

// IntakeUsecase is the synchronous half of the pipeline: it validates a
// submission, fingerprints and stages every item, assigns the display
// order and enqueues exactly one upload task. The caller is back in
// control before the first durable write happens.
type IntakeUsecase struct {
	validator domain.Validator
	stager    domain.Stager
	queue     domain.TaskQueue
	sink      domain.EventSink
	maxCount  int
}

func NewIntakeUsecase(
	validator domain.Validator,
	stager domain.Stager,
	queue domain.TaskQueue,
	sink domain.EventSink,
	maxCount int,
) *IntakeUsecase {
	return &IntakeUsecase{
		validator: validator,
		stager:    stager,
		queue:     queue,
		sink:      sink,
		maxCount:  maxCount,
	}
}

func (u *IntakeUsecase) Submit(ctx context.Context, ownerID int64, items []domain.UploadItem) error {
	if len(items) == 0 {
		zlog.Logger.Warn().Int64("owner_id", ownerID).Msg("empty submission, nothing to do")
		return nil
	}
	if len(items) > u.maxCount {
		return fmt.Errorf("%w: got %d, limit is %d", domain.ErrTooManyItems, len(items), u.maxCount)
	}

	// Fail fast before anything is staged: one invalid item rejects the
	// whole submission with zero side effects.
	metas, err := u.validator.Validate(ctx, items)
	if err != nil {
		zlog.Logger.Warn().Err(err).Int64("owner_id", ownerID).Msg("submission rejected by validation")
		return err
	}

	staged, err := u.stageAll(ownerID, items, metas)
	if err != nil {
		return err
	}
	if len(staged) == 0 {
		zlog.Logger.Warn().Int64("owner_id", ownerID).Msg("no stageable items in submission")
		return nil
	}

	task := &domain.UploadTask{
		ID:      uuid.New().String(),
		OwnerID: ownerID,
		Items:   staged,
	}
	if err := u.queue.Enqueue(ctx, task); err != nil {
		releaseAll(staged)
		return fmt.Errorf("enqueue upload task: %w", err)
	}

	u.sink.SubmissionAccepted(ownerID, len(staged))
	zlog.Logger.Info().
		Int64("owner_id", ownerID).
		Str("task_id", task.ID).
		Int("count", len(staged)).
		Msg("upload task scheduled")
	return nil
}

// stageAll fingerprints and stages items in submission order, assigning
// contiguous 1-based sequence indices. An unreadable payload skips that
// item only; a staging-area failure rolls back every handle created so
// far and aborts the submission.
func (u *IntakeUsecase) stageAll(ownerID int64, items []domain.UploadItem, metas []domain.ImageMeta) ([]domain.StagedItem, error) {
	staged := make([]domain.StagedItem, 0, len(items))
	seq := 0

	for i, item := range items {
		if item.Payload == nil || item.Size == 0 {
			zlog.Logger.Warn().
				Int64("owner_id", ownerID).
				Str("filename", item.OriginalName).
				Msg("skipping empty item")
			continue
		}

		hash, err := fingerprint.Sum(item.Payload)
		if err != nil {
			zlog.Logger.Warn().Err(err).
				Int64("owner_id", ownerID).
				Str("filename", item.OriginalName).
				Msg("skipping unreadable item")
			continue
		}
		if _, err := item.Payload.Seek(0, io.SeekStart); err != nil {
			zlog.Logger.Warn().Err(err).
				Int64("owner_id", ownerID).
				Str("filename", item.OriginalName).
				Msg("skipping item that cannot be rewound")
			continue
		}

		handle, err := u.stager.Stage(item.Payload)
		if err != nil {
			if errors.Is(err, domain.ErrPayloadUnreadable) {
				zlog.Logger.Warn().Err(err).
					Int64("owner_id", ownerID).
					Str("filename", item.OriginalName).
					Msg("skipping unreadable item")
				continue
			}
			releaseAll(staged)
			zlog.Logger.Error().Err(err).
				Int64("owner_id", ownerID).
				Str("filename", item.OriginalName).
				Msg("staging failed, submission rolled back")
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrStagingFailed, item.OriginalName, err)
		}

		seq++
		staged = append(staged, domain.StagedItem{
			OwnerID:       ownerID,
			OriginalName:  item.OriginalName,
			Handle:        handle,
			ContentHash:   hash,
			SequenceIndex: seq,
			ContentType:   item.ContentType,
			Size:          handle.Size(),
			Meta:          metas[i],
		})

		zlog.Logger.Info().
			Int64("owner_id", ownerID).
			Int("sequence_index", seq).
			Str("filename", item.OriginalName).
			Str("content_hash", hash).
			Int64("bytes", handle.Size()).
			Msg("item staged")
	}

	return staged, nil
}

func releaseAll(staged []domain.StagedItem) {
	for _, s := range staged {
		s.Handle.Release()
	}
}
