package dto

import (
	"time"

	"github.com/ururulab/imageingest/internal/domain"
)

// SubmissionAcceptedResponse is returned as soon as a batch is staged
// and scheduled; uploads continue in the background.
type SubmissionAcceptedResponse struct {
	OwnerID int64  `json:"owner_id"`
	Count   int    `json:"count"`
	Status  string `json:"status"`
}

type ImageResponse struct {
	ID           int64     `json:"id"`
	URL          string    `json:"url"`
	DisplayOrder int       `json:"display_order"`
	ContentHash  string    `json:"content_hash"`
	Format       string    `json:"format,omitempty"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}

type ImageListResponse struct {
	OwnerID int64            `json:"owner_id"`
	Images  []*ImageResponse `json:"images"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func MapRecordToResponse(rec *domain.ImageRecord) *ImageResponse {
	if rec == nil {
		return nil
	}
	return &ImageResponse{
		ID:           rec.ID,
		URL:          rec.URL,
		DisplayOrder: rec.DisplayOrder,
		ContentHash:  rec.ContentHash,
		Format:       rec.Format,
		Width:        rec.Width,
		Height:       rec.Height,
		SizeBytes:    rec.SizeBytes,
		CreatedAt:    rec.CreatedAt,
	}
}

func MapRecordsToResponse(ownerID int64, records []*domain.ImageRecord, limit, offset int) *ImageListResponse {
	responses := make([]*ImageResponse, 0, len(records))
	for _, rec := range records {
		responses = append(responses, MapRecordToResponse(rec))
	}
	return &ImageListResponse{
		OwnerID: ownerID,
		Images:  responses,
		Total:   len(responses),
		Limit:   limit,
		Offset:  offset,
	}
}
