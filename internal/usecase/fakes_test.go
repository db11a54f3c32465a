package usecase

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/ururulab/imageingest/internal/domain"
)

type fakeValidator struct {
	metas []domain.ImageMeta
	err   error
	calls int
}

func (f *fakeValidator) Validate(ctx context.Context, items []domain.UploadItem) ([]domain.ImageMeta, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.metas != nil {
		return f.metas, nil
	}
	return make([]domain.ImageMeta, len(items)), nil
}

type fakeHandle struct {
	path     string
	size     int64
	mu       sync.Mutex
	released int
}

func (h *fakeHandle) Path() string { return h.path }
func (h *fakeHandle) Size() int64  { return h.size }
func (h *fakeHandle) Open() (io.ReadCloser, error) {
	return io.NopCloser(nil), nil
}
func (h *fakeHandle) Release() {
	h.mu.Lock()
	h.released++
	h.mu.Unlock()
}
func (h *fakeHandle) releaseCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// fakeStager hands out fakeHandles and can be scripted to fail on the
// n-th call, either as an unreadable payload or as a staging-area fault.
type fakeStager struct {
	calls      int
	failAt     int
	failErr    error
	handles    []*fakeHandle
	handleSize int64
}

func (f *fakeStager) Stage(r io.Reader) (domain.StagingHandle, error) {
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return nil, f.failErr
	}
	h := &fakeHandle{path: "staged", size: f.handleSize}
	f.handles = append(f.handles, h)
	return h, nil
}

func (f *fakeStager) unreleased() int {
	n := 0
	for _, h := range f.handles {
		if h.releaseCount() == 0 {
			n++
		}
	}
	return n
}

type fakeQueue struct {
	err   error
	tasks []*domain.UploadTask
}

func (f *fakeQueue) Enqueue(ctx context.Context, task *domain.UploadTask) error {
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, task)
	return nil
}

// recordingSink counts every pipeline event it receives.
type recordingSink struct {
	mu                 sync.Mutex
	accepted           int
	acceptedCount      int
	attempts           int
	successes          int
	failures           int
	partialFailures    int
	ownerMissing       int
	ownerMissingImages int
}

func (s *recordingSink) SubmissionAccepted(ownerID int64, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted++
	s.acceptedCount = count
}

func (s *recordingSink) UploadAttempt(ownerID int64, sequenceIndex, attempt int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
}

func (s *recordingSink) UploadSucceeded(ownerID int64, sequenceIndex int, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successes++
}

func (s *recordingSink) UploadFailed(ownerID int64, sequenceIndex int, retriesExhausted bool, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
}

func (s *recordingSink) BatchPartialFailure(ownerID int64, failedCount, totalCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partialFailures++
}

func (s *recordingSink) OwnerMissing(ownerID int64, imageCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownerMissing++
	s.ownerMissingImages = imageCount
}

type fakeOwnerRepo struct {
	owner       *domain.Owner
	findErr     error
	attachErr   error
	attached    []*domain.ImageRecord
	findCalls   int
	attachCalls int
}

func (f *fakeOwnerRepo) FindByID(ctx context.Context, id int64) (*domain.Owner, error) {
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.owner, nil
}

func (f *fakeOwnerRepo) AttachImages(ctx context.Context, owner *domain.Owner, records []*domain.ImageRecord) error {
	f.attachCalls++
	if f.attachErr != nil {
		return f.attachErr
	}
	f.attached = records
	return nil
}

func (f *fakeOwnerRepo) ListImages(ctx context.Context, ownerID int64, limit, offset int) ([]*domain.ImageRecord, error) {
	return nil, errors.New("not implemented")
}
