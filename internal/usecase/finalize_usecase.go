package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/wb-go/wbf/zlog"

	"github.com/ururulab/imageingest/internal/domain"
)

// FinalizeUsecase turns the per-item outcomes of a finished task into
// durable image records. Successes are persisted in one atomic batch;
// failures are only reported, never retried here.
type FinalizeUsecase struct {
	owners domain.OwnerRepository
	sink   domain.EventSink
}

func NewFinalizeUsecase(owners domain.OwnerRepository, sink domain.EventSink) *FinalizeUsecase {
	return &FinalizeUsecase{
		owners: owners,
		sink:   sink,
	}
}

func (u *FinalizeUsecase) Finalize(ctx context.Context, ownerID int64, outcomes []domain.UploadOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	records := make([]*domain.ImageRecord, 0, len(outcomes))
	failures := make([]domain.UploadOutcome, 0)
	for _, o := range outcomes {
		if !o.Succeeded() {
			failures = append(failures, o)
			continue
		}
		records = append(records, &domain.ImageRecord{
			OwnerID:      ownerID,
			URL:          o.URL,
			DisplayOrder: o.Item.SequenceIndex,
			ContentHash:  o.Item.ContentHash,
			Format:       o.Item.Meta.Format,
			Width:        o.Item.Meta.Width,
			Height:       o.Item.Meta.Height,
			SizeBytes:    o.Item.Size,
		})
	}

	if len(records) > 0 {
		owner, err := u.owners.FindByID(ctx, ownerID)
		if err != nil {
			if errors.Is(err, domain.ErrOwnerNotFound) {
				// Owner absence is a permanent precondition violation,
				// not a transient fault: report it and stop.
				u.sink.OwnerMissing(ownerID, len(records))
				return fmt.Errorf("finalize batch for owner %d: %w", ownerID, err)
			}
			return fmt.Errorf("find owner %d: %w", ownerID, err)
		}

		if err := u.owners.AttachImages(ctx, owner, records); err != nil {
			zlog.Logger.Error().Err(err).
				Int64("owner_id", ownerID).
				Int("count", len(records)).
				Msg("failed to persist image records")
			return fmt.Errorf("attach images to owner %d: %w", ownerID, err)
		}

		zlog.Logger.Info().
			Int64("owner_id", ownerID).
			Int("count", len(records)).
			Msg("image records persisted")
	}

	if len(failures) > 0 {
		u.sink.BatchPartialFailure(ownerID, len(failures), len(outcomes))
		reasons := make([]string, 0, len(failures))
		for _, f := range failures {
			reasons = append(reasons, fmt.Sprintf("image %d: %v (retries exhausted: %t)",
				f.Item.SequenceIndex, f.Err, f.RetriesExhausted))
		}
		zlog.Logger.Warn().
			Int64("owner_id", ownerID).
			Int("failed_count", len(failures)).
			Int("total_count", len(outcomes)).
			Strs("reasons", reasons).
			Msg("some uploads failed")
	}

	return nil
}
