package domain

import "context"

type OwnerRepository interface {
	FindByID(ctx context.Context, id int64) (*Owner, error)
	// AttachImages persists all records in one transaction, or none of
	// them. The owner row must still exist at commit time.
	AttachImages(ctx context.Context, owner *Owner, records []*ImageRecord) error
	ListImages(ctx context.Context, ownerID int64, limit, offset int) ([]*ImageRecord, error)
}
