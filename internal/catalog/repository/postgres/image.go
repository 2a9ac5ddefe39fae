package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/karyatek/storefront/internal/catalog/domain"
	"github.com/karyatek/storefront/pkg/database"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

// ImageRepository implements repository.ImageRepository using PostgreSQL.
type ImageRepository struct {
	pool database.DBTX
}

// NewImageRepository creates a PostgreSQL-backed product image repository.
func NewImageRepository(pool database.DBTX) *ImageRepository {
	return &ImageRepository{pool: pool}
}

// Attach links a CDN asset to a product.
func (r *ImageRepository) Attach(ctx context.Context, img *domain.Image) error {
	query := `
		INSERT INTO product_images (id, product_id, variant_id, asset_id, alt_text, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		img.ID, img.ProductID, img.VariantID, img.AssetID, img.AltText, img.Position, img.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product image: %w", err)
	}
	return nil
}

// ListByProduct returns a product's images ordered by position.
func (r *ImageRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]domain.Image, error) {
	query := `
		SELECT i.id, i.product_id, i.variant_id, i.asset_id, a.url, i.alt_text, i.position, i.created_at
		FROM product_images i
		JOIN media_assets a ON a.id = i.asset_id
		WHERE i.product_id = $1
		ORDER BY i.position`

	rows, err := r.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("list product images: %w", err)
	}
	defer rows.Close()

	images := make([]domain.Image, 0)
	for rows.Next() {
		var img domain.Image
		if err := rows.Scan(
			&img.ID, &img.ProductID, &img.VariantID, &img.AssetID, &img.URL, &img.AltText, &img.Position, &img.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product image rows: %w", err)
	}
	return images, nil
}

// Detach removes a product image link. The underlying CDN asset survives
// until the media cleanup job decides it is unreferenced and old enough.
func (r *ImageRepository) Detach(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM product_images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product image: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product image", id.String())
	}
	return nil
}

// ReferencedAssetIDs returns every media asset id still linked to a product.
func (r *ImageRepository) ReferencedAssetIDs(ctx context.Context) (map[uuid.UUID]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT asset_id FROM product_images`)
	if err != nil {
		return nil, fmt.Errorf("query referenced assets: %w", err)
	}
	defer rows.Close()

	refs := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan referenced asset id: %w", err)
		}
		refs[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referenced asset rows: %w", err)
	}
	return refs, nil
}
