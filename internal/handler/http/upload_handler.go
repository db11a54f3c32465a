package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/ururulab/imageingest/internal/domain"
	"github.com/ururulab/imageingest/internal/dto"
)

// UploadHandler is the thin HTTP boundary over the intake pipeline.
type UploadHandler struct {
	intake        domain.IntakeService
	owners        domain.OwnerRepository
	maxUploadSize int64
}

func NewUploadHandler(intake domain.IntakeService, owners domain.OwnerRepository, maxUploadSizeMB int) *UploadHandler {
	return &UploadHandler{
		intake:        intake,
		owners:        owners,
		maxUploadSize: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

func (h *UploadHandler) RegisterRoutes(engine *ginext.Engine) {
	engine.POST("/owners/:id/images", h.UploadImages)
	engine.GET("/owners/:id/images", h.ListImages)
}

// UploadImages POST /owners/:id/images
//
// Accepts a multipart batch under the "images" field and returns 202 as
// soon as the batch is staged; everything after that is asynchronous.
func (h *UploadHandler) UploadImages(c *ginext.Context) {
	ownerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || ownerID <= 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_request",
			Message: "Owner ID must be a positive integer",
		})
		return
	}

	if err := c.Request.ParseMultipartForm(h.maxUploadSize); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to parse multipart form")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_request",
			Message: "Request is not a valid multipart form",
		})
		return
	}

	fileHeaders := c.Request.MultipartForm.File["images"]
	items := make([]domain.UploadItem, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		file, err := fh.Open()
		if err != nil {
			zlog.Logger.Warn().Err(err).Str("filename", fh.Filename).Msg("failed to open uploaded file")
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "invalid_request",
				Message: fmt.Sprintf("Cannot read uploaded file %s", fh.Filename),
			})
			return
		}
		defer file.Close()

		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		items = append(items, domain.UploadItem{
			OriginalName: fh.Filename,
			ContentType:  contentType,
			Size:         fh.Size,
			Payload:      file,
		})
	}

	if err := h.intake.Submit(c.Request.Context(), ownerID, items); err != nil {
		h.writeSubmitError(c, ownerID, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.SubmissionAcceptedResponse{
		OwnerID: ownerID,
		Count:   len(items),
		Status:  "accepted",
	})
}

// ListImages GET /owners/:id/images
func (h *UploadHandler) ListImages(c *ginext.Context) {
	ownerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || ownerID <= 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_request",
			Message: "Owner ID must be a positive integer",
		})
		return
	}

	limit := 20
	if l := c.Query("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 && val <= 100 {
			limit = val
		}
	}
	offset := 0
	if o := c.Query("offset"); o != "" {
		if val, err := strconv.Atoi(o); err == nil && val >= 0 {
			offset = val
		}
	}

	records, err := h.owners.ListImages(c.Request.Context(), ownerID, limit, offset)
	if err != nil {
		zlog.Logger.Error().Err(err).Int64("owner_id", ownerID).Msg("failed to list images")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "server_error",
			Message: "Failed to retrieve images",
		})
		return
	}

	c.JSON(http.StatusOK, dto.MapRecordsToResponse(ownerID, records, limit, offset))
}

// writeSubmitError maps the synchronous rejection taxonomy to HTTP.
// Only rejection-class failures ever reach the caller; everything past
// staging is reconciled through the observability sink.
func (h *UploadHandler) writeSubmitError(c *ginext.Context, ownerID int64, err error) {
	switch {
	case errors.Is(err, domain.ErrTooManyItems):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "too_many_images",
			Message: err.Error(),
		})
	case errors.Is(err, domain.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_image",
			Message: err.Error(),
		})
	case errors.Is(err, domain.ErrPayloadUnreadable):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "unreadable_image",
			Message: err.Error(),
		})
	default:
		zlog.Logger.Error().Err(err).Int64("owner_id", ownerID).Msg("submission failed")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "submission_failed",
			Message: "Failed to accept image submission",
		})
	}
}
