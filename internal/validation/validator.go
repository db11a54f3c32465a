package validation

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/wb-go/wbf/zlog"
	_ "golang.org/x/image/webp"

	"github.com/ururulab/imageingest/internal/domain"
)

// ImageValidator performs the per-item size/format checks for a whole
// submission before anything is staged. Fail-fast: the first invalid
// item rejects the submission with zero side effects.
type ImageValidator struct {
	maxFileSize    int64
	allowedFormats map[string]struct{}
}

func New(maxFileSizeMB int, formats []string) *ImageValidator {
	allowed := make(map[string]struct{}, len(formats))
	for _, f := range formats {
		allowed[strings.ToLower(strings.TrimPrefix(f, "."))] = struct{}{}
	}
	return &ImageValidator{
		maxFileSize:    int64(maxFileSizeMB) * 1024 * 1024,
		allowedFormats: allowed,
	}
}

func (v *ImageValidator) Validate(ctx context.Context, items []domain.UploadItem) ([]domain.ImageMeta, error) {
	metas := make([]domain.ImageMeta, len(items))

	for i, item := range items {
		if item.Payload == nil || item.Size == 0 {
			// Empty slots are skipped at intake, nothing to check.
			continue
		}
		if v.maxFileSize > 0 && item.Size > v.maxFileSize {
			return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d",
				domain.ErrValidationFailed, item.OriginalName, item.Size, v.maxFileSize)
		}

		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(item.OriginalName), "."))
		if _, ok := v.allowedFormats[ext]; !ok {
			return nil, fmt.Errorf("%w: unsupported format %q for %s",
				domain.ErrValidationFailed, ext, item.OriginalName)
		}

		meta, err := v.decode(item)
		if err != nil {
			return nil, err
		}
		metas[i] = meta
	}

	return metas, nil
}

// decode verifies the payload is a real, fully decodable image and
// captures its dimensions. The payload is rewound afterwards so the
// same bytes are hashed and staged later.
func (v *ImageValidator) decode(item domain.UploadItem) (domain.ImageMeta, error) {
	var meta domain.ImageMeta

	if _, err := item.Payload.Seek(0, io.SeekStart); err != nil {
		return meta, fmt.Errorf("%w: %s: %v", domain.ErrPayloadUnreadable, item.OriginalName, err)
	}

	data, err := io.ReadAll(item.Payload)
	if err != nil {
		return meta, fmt.Errorf("%w: %s: %v", domain.ErrPayloadUnreadable, item.OriginalName, err)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return meta, fmt.Errorf("%w: %s is not a recognized image: %v",
			domain.ErrValidationFailed, item.OriginalName, err)
	}
	if _, ok := v.allowedFormats[format]; !ok {
		return meta, fmt.Errorf("%w: %s content is %s, which is not allowed",
			domain.ErrValidationFailed, item.OriginalName, format)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return meta, fmt.Errorf("%w: %s is corrupt: %v",
			domain.ErrValidationFailed, item.OriginalName, err)
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return meta, fmt.Errorf("%w: %s is empty", domain.ErrValidationFailed, item.OriginalName)
	}

	if _, err := item.Payload.Seek(0, io.SeekStart); err != nil {
		return meta, fmt.Errorf("%w: %s: %v", domain.ErrPayloadUnreadable, item.OriginalName, err)
	}

	zlog.Logger.Debug().
		Str("filename", item.OriginalName).
		Str("format", format).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Msg("image validated")

	return domain.ImageMeta{Format: format, Width: bounds.Dx(), Height: bounds.Dy()}, nil
}
