package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/ururulab/imageingest/internal/domain"
)

type ownerRepository struct {
	db       *dbpg.DB
	strategy retry.Strategy
}

func NewOwnerRepository(db *dbpg.DB, strategy retry.Strategy) domain.OwnerRepository {
	return &ownerRepository{
		db:       db,
		strategy: strategy,
	}
}

func (r *ownerRepository) FindByID(ctx context.Context, id int64) (*domain.Owner, error) {
	query := `
		SELECT id, title, created_at
		FROM owners
		WHERE id = $1
	`

	var owner domain.Owner
	row := r.db.Master.QueryRowContext(ctx, query, id)
	err := row.Scan(&owner.ID, &owner.Title, &owner.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrOwnerNotFound
	}
	if err != nil {
		zlog.Logger.Error().Err(err).Int64("owner_id", id).Msg("failed to find owner")
		return nil, fmt.Errorf("find owner: %w", err)
	}

	return &owner, nil
}

// AttachImages inserts every record in one transaction. The owner row
// is re-checked inside the transaction so a concurrently deleted owner
// cannot end up with orphaned records.
func (r *ownerRepository) AttachImages(ctx context.Context, owner *domain.Owner, records []*domain.ImageRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attach images tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM owners WHERE id = $1)`, owner.ID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check owner %d: %w", owner.ID, err)
	}
	if !exists {
		return domain.ErrOwnerNotFound
	}

	query := `
		INSERT INTO owner_images (
			owner_id, url, display_order, content_hash,
			format, width, height, size_bytes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, query,
			rec.OwnerID,
			rec.URL,
			rec.DisplayOrder,
			rec.ContentHash,
			nullString(rec.Format),
			nullInt(rec.Width),
			nullInt(rec.Height),
			rec.SizeBytes,
		); err != nil {
			zlog.Logger.Error().Err(err).
				Int64("owner_id", rec.OwnerID).
				Int("display_order", rec.DisplayOrder).
				Msg("failed to insert image record")
			return fmt.Errorf("insert image record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attach images tx: %w", err)
	}

	zlog.Logger.Info().
		Int64("owner_id", owner.ID).
		Int("count", len(records)).
		Msg("image records attached")
	return nil
}

func (r *ownerRepository) ListImages(ctx context.Context, ownerID int64, limit, offset int) ([]*domain.ImageRecord, error) {
	query := `
		SELECT id, owner_id, url, display_order, content_hash,
			   format, width, height, size_bytes, created_at
		FROM owner_images
		WHERE owner_id = $1
		ORDER BY display_order ASC, created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryWithRetry(ctx, r.strategy, query, ownerID, limit, offset)
	if err != nil {
		zlog.Logger.Error().Err(err).Int64("owner_id", ownerID).Msg("failed to list images")
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var records []*domain.ImageRecord
	for rows.Next() {
		var rec domain.ImageRecord
		var format sql.NullString
		var width, height sql.NullInt32

		if err := rows.Scan(
			&rec.ID,
			&rec.OwnerID,
			&rec.URL,
			&rec.DisplayOrder,
			&rec.ContentHash,
			&format,
			&width,
			&height,
			&rec.SizeBytes,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan image record: %w", err)
		}

		if format.Valid {
			rec.Format = format.String
		}
		if width.Valid {
			rec.Width = int(width.Int32)
		}
		if height.Valid {
			rec.Height = int(height.Int32)
		}

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return records, nil
}

// Helper functions
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(i int) sql.NullInt32 {
	if i == 0 {
		return sql.NullInt32{Valid: false}
	}
	return sql.NullInt32{Int32: int32(i), Valid: true}
}
