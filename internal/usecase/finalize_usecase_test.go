package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ururulab/imageingest/internal/domain"
)

func outcome(seq int, url string, err error, exhausted bool) domain.UploadOutcome {
	return domain.UploadOutcome{
		Item: domain.StagedItem{
			OwnerID:       42,
			SequenceIndex: seq,
			ContentHash:   "abc123",
			Size:          1024,
			Meta:          domain.ImageMeta{Format: "jpeg", Width: 800, Height: 600},
		},
		URL:              url,
		Err:              err,
		RetriesExhausted: exhausted,
	}
}

func TestFinalizePersistsSuccessesInOrder(t *testing.T) {
	repo := &fakeOwnerRepo{owner: &domain.Owner{ID: 42, Title: "Autumn drop"}}
	sink := &recordingSink{}
	u := NewFinalizeUsecase(repo, sink)

	outcomes := []domain.UploadOutcome{
		outcome(1, "https://cdn.test/1", nil, false),
		outcome(2, "https://cdn.test/2", nil, false),
		outcome(3, "https://cdn.test/3", nil, false),
	}

	require.NoError(t, u.Finalize(context.Background(), 42, outcomes))
	require.Equal(t, 1, repo.attachCalls)
	require.Len(t, repo.attached, 3)
	for i, r := range repo.attached {
		require.Equal(t, int64(42), r.OwnerID)
		require.Equal(t, i+1, r.DisplayOrder)
		require.Equal(t, "jpeg", r.Format)
		require.Equal(t, int64(1024), r.SizeBytes)
	}
	require.Zero(t, sink.partialFailures)
}

func TestFinalizePartialFailurePersistsTheRest(t *testing.T) {
	repo := &fakeOwnerRepo{owner: &domain.Owner{ID: 42}}
	sink := &recordingSink{}
	u := NewFinalizeUsecase(repo, sink)

	outcomes := []domain.UploadOutcome{
		outcome(1, "https://cdn.test/1", nil, false),
		outcome(2, "", errors.New("upload failed"), true),
		outcome(3, "https://cdn.test/3", nil, false),
	}

	// Partial failure is reported, not returned as an error.
	require.NoError(t, u.Finalize(context.Background(), 42, outcomes))
	require.Len(t, repo.attached, 2)
	require.Equal(t, 1, repo.attached[0].DisplayOrder)
	require.Equal(t, 3, repo.attached[1].DisplayOrder)
	require.Equal(t, 1, sink.partialFailures)
}

func TestFinalizeOwnerMissing(t *testing.T) {
	repo := &fakeOwnerRepo{findErr: domain.ErrOwnerNotFound}
	sink := &recordingSink{}
	u := NewFinalizeUsecase(repo, sink)

	outcomes := []domain.UploadOutcome{outcome(1, "https://cdn.test/1", nil, false)}

	err := u.Finalize(context.Background(), 42, outcomes)
	require.ErrorIs(t, err, domain.ErrOwnerNotFound)
	require.Equal(t, 1, sink.ownerMissing)
	require.Equal(t, 1, sink.ownerMissingImages)
	require.Zero(t, repo.attachCalls)
}

func TestFinalizeAllFailedSkipsOwnerLookup(t *testing.T) {
	repo := &fakeOwnerRepo{findErr: domain.ErrOwnerNotFound}
	sink := &recordingSink{}
	u := NewFinalizeUsecase(repo, sink)

	outcomes := []domain.UploadOutcome{
		outcome(1, "", errors.New("boom"), true),
		outcome(2, "", errors.New("boom"), false),
	}

	require.NoError(t, u.Finalize(context.Background(), 42, outcomes))
	require.Zero(t, repo.findCalls)
	require.Zero(t, repo.attachCalls)
	require.Equal(t, 1, sink.partialFailures)
}

func TestFinalizeAttachFailurePropagates(t *testing.T) {
	repo := &fakeOwnerRepo{owner: &domain.Owner{ID: 42}, attachErr: errors.New("deadlock detected")}
	u := NewFinalizeUsecase(repo, &recordingSink{})

	outcomes := []domain.UploadOutcome{outcome(1, "https://cdn.test/1", nil, false)}

	err := u.Finalize(context.Background(), 42, outcomes)
	require.Error(t, err)
	require.Contains(t, err.Error(), "deadlock")
}

func TestFinalizeNoOutcomes(t *testing.T) {
	repo := &fakeOwnerRepo{}
	u := NewFinalizeUsecase(repo, &recordingSink{})

	require.NoError(t, u.Finalize(context.Background(), 42, nil))
	require.Zero(t, repo.findCalls)
}
