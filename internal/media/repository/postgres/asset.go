// Package postgres implements the media repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/karyatek/storefront/internal/media/domain"
	"github.com/karyatek/storefront/pkg/database"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

// AssetRepository implements repository.AssetRepository using PostgreSQL.
type AssetRepository struct {
	pool database.DBTX
}

// NewAssetRepository creates a PostgreSQL-backed asset repository.
func NewAssetRepository(pool database.DBTX) *AssetRepository {
	return &AssetRepository{pool: pool}
}

const assetColumns = `id, public_id, url, format, bytes, width, height, created_at`

func scanAsset(row pgx.Row, ref string) (*domain.Asset, error) {
	var a domain.Asset
	err := row.Scan(&a.ID, &a.PublicID, &a.URL, &a.Format, &a.Bytes, &a.Width, &a.Height, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("media asset", ref)
		}
		return nil, fmt.Errorf("scan media asset: %w", err)
	}
	return &a, nil
}

// Create inserts a new asset record.
func (r *AssetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO media_assets (id, public_id, url, format, bytes, width, height, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		asset.ID, asset.PublicID, asset.URL, asset.Format,
		asset.Bytes, asset.Width, asset.Height, asset.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert media asset: %w", err)
	}
	return nil
}

// GetByID returns the asset with the given ID.
func (r *AssetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM media_assets WHERE id = $1`, assetColumns), id)
	return scanAsset(row, id.String())
}

// List returns a page of assets, newest first, with the total count.
func (r *AssetRepository) List(ctx context.Context, offset, limit int) ([]domain.Asset, int, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total_count
		FROM media_assets
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, assetColumns),
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list media assets: %w", err)
	}
	defer rows.Close()

	assets := make([]domain.Asset, 0)
	var total int
	for rows.Next() {
		var a domain.Asset
		if err := rows.Scan(&a.ID, &a.PublicID, &a.URL, &a.Format, &a.Bytes, &a.Width, &a.Height, &a.CreatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan media asset row: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate media asset rows: %w", err)
	}
	return assets, total, nil
}

// Delete removes an asset record.
func (r *AssetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM media_assets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete media asset: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("media asset", id.String())
	}
	return nil
}

// ListCreatedBefore returns every asset uploaded before the cutoff.
func (r *AssetRepository) ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]domain.Asset, error) {
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM media_assets WHERE created_at < $1 ORDER BY created_at`, assetColumns),
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("list media assets before cutoff: %w", err)
	}
	defer rows.Close()

	assets := make([]domain.Asset, 0)
	for rows.Next() {
		a, err := scanAsset(rows, "cutoff")
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media asset rows: %w", err)
	}
	return assets, nil
}
