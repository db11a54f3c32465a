package observability

import (
	"github.com/wb-go/wbf/zlog"
)

// LogSink emits the pipeline's structured events through zlog. Every
// event carries an "event" field so log pipelines can route on it.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) SubmissionAccepted(ownerID int64, count int) {
	zlog.Logger.Info().
		Str("event", "submission.accepted").
		Int64("owner_id", ownerID).
		Int("count", count).
		Msg("submission accepted")
}

func (s *LogSink) UploadAttempt(ownerID int64, sequenceIndex, attempt int) {
	zlog.Logger.Info().
		Str("event", "upload.attempt").
		Int64("owner_id", ownerID).
		Int("sequence_index", sequenceIndex).
		Int("attempt", attempt).
		Msg("upload attempt")
}

func (s *LogSink) UploadSucceeded(ownerID int64, sequenceIndex int, url string) {
	zlog.Logger.Info().
		Str("event", "upload.success").
		Int64("owner_id", ownerID).
		Int("sequence_index", sequenceIndex).
		Str("url", url).
		Msg("upload succeeded")
}

func (s *LogSink) UploadFailed(ownerID int64, sequenceIndex int, retriesExhausted bool, cause error) {
	zlog.Logger.Warn().
		Str("event", "upload.failed").
		Int64("owner_id", ownerID).
		Int("sequence_index", sequenceIndex).
		Bool("retries_exhausted", retriesExhausted).
		Err(cause).
		Msg("upload failed")
}

func (s *LogSink) BatchPartialFailure(ownerID int64, failedCount, totalCount int) {
	zlog.Logger.Warn().
		Str("event", "batch.partial_failure").
		Int64("owner_id", ownerID).
		Int("failed_count", failedCount).
		Int("total_count", totalCount).
		Msg("batch finished with failures")
}

func (s *LogSink) OwnerMissing(ownerID int64, imageCount int) {
	zlog.Logger.Error().
		Str("event", "finalize.owner_missing").
		Int64("owner_id", ownerID).
		Int("image_count", imageCount).
		Msg("owner disappeared before finalize, nothing persisted")
}
