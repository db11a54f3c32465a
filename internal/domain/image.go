package domain

import (
	"time"
)

// Owner is the entity a batch of images is attached to. The pipeline
// treats it as opaque: it is created and managed elsewhere, we only
// look it up and attach image records to it.
type Owner struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// ImageRecord is the durable result of one successfully uploaded image.
// DisplayOrder carries the original submission position of the item.
type ImageRecord struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"owner_id"`
	URL          string    `json:"url"`
	DisplayOrder int       `json:"display_order"`
	ContentHash  string    `json:"content_hash"`
	Format       string    `json:"format,omitempty"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}
