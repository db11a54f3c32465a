package validation

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ururulab/imageingest/internal/domain"
)

func pngPayload(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func item(name string, data []byte) domain.UploadItem {
	return domain.UploadItem{
		OriginalName: name,
		ContentType:  "image/png",
		Size:         int64(len(data)),
		Payload:      bytes.NewReader(data),
	}
}

func TestValidateAcceptsRealImage(t *testing.T) {
	v := New(10, []string{"png", "jpg"})
	data := pngPayload(t, 8, 6)

	metas, err := v.Validate(context.Background(), []domain.UploadItem{item("photo.png", data)})
	require.NoError(t, err)
	require.Len(t, metas, 1)
	require.Equal(t, "png", metas[0].Format)
	require.Equal(t, 8, metas[0].Width)
	require.Equal(t, 6, metas[0].Height)
}

func TestValidateRewindsPayload(t *testing.T) {
	v := New(10, []string{"png"})
	data := pngPayload(t, 4, 4)
	it := item("photo.png", data)

	_, err := v.Validate(context.Background(), []domain.UploadItem{it})
	require.NoError(t, err)

	// The same bytes must still be readable from the start afterwards.
	got := make([]byte, 8)
	n, err := it.Payload.Read(got)
	require.NoError(t, err)
	require.Equal(t, data[:n], got[:n])
}

func TestValidateRejectsOversizedItem(t *testing.T) {
	v := New(1, []string{"png"})
	it := item("big.png", pngPayload(t, 4, 4))
	it.Size = 2 * 1024 * 1024

	_, err := v.Validate(context.Background(), []domain.UploadItem{it})
	require.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestValidateRejectsUnsupportedExtension(t *testing.T) {
	v := New(10, []string{"png"})
	it := item("document.pdf", []byte("%PDF-1.4"))

	_, err := v.Validate(context.Background(), []domain.UploadItem{it})
	require.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestValidateRejectsCorruptPayload(t *testing.T) {
	v := New(10, []string{"png"})
	it := item("broken.png", []byte("definitely not a png"))

	_, err := v.Validate(context.Background(), []domain.UploadItem{it})
	require.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestValidateRejectsTruncatedPayload(t *testing.T) {
	// Header is intact, pixel data is cut off mid stream.
	v := New(10, []string{"png"})
	data := pngPayload(t, 4, 4)
	truncated := data[:len(data)/2]
	it := item("half.png", truncated)

	_, err := v.Validate(context.Background(), []domain.UploadItem{it})
	require.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestValidateExtensionSpoofing(t *testing.T) {
	// PNG content named .gif: header sniffing must win over the name.
	v := New(10, []string{"gif"})
	it := item("sneaky.gif", pngPayload(t, 4, 4))

	_, err := v.Validate(context.Background(), []domain.UploadItem{it})
	require.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestValidateFailFast(t *testing.T) {
	v := New(10, []string{"png"})
	good := item("ok.png", pngPayload(t, 4, 4))
	bad := item("nope.txt", []byte("text"))

	_, err := v.Validate(context.Background(), []domain.UploadItem{good, bad})
	require.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestValidateSkipsEmptyItems(t *testing.T) {
	v := New(10, []string{"png"})
	empty := domain.UploadItem{OriginalName: "empty.png", Size: 0}

	metas, err := v.Validate(context.Background(), []domain.UploadItem{empty})
	require.NoError(t, err)
	require.Len(t, metas, 1)
	require.Zero(t, metas[0])
}
