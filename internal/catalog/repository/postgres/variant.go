package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/karyatek/storefront/internal/catalog/domain"
	"github.com/karyatek/storefront/pkg/database"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

// VariantRepository implements repository.VariantRepository using PostgreSQL.
type VariantRepository struct {
	pool database.DBTX
}

// NewVariantRepository creates a PostgreSQL-backed variant repository.
func NewVariantRepository(pool database.DBTX) *VariantRepository {
	return &VariantRepository{pool: pool}
}

const variantColumns = `id, product_id, sku, color, size, price_delta_cents, stock, created_at, updated_at`

// Create inserts a new variant.
func (r *VariantRepository) Create(ctx context.Context, v *domain.Variant) error {
	query := `
		INSERT INTO product_variants (id, product_id, sku, color, size, price_delta_cents, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		v.ID, v.ProductID, v.SKU, v.Color, v.Size, v.PriceDeltaCents, v.Stock, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("variant", "sku", v.SKU)
		}
		return fmt.Errorf("insert variant: %w", err)
	}
	return nil
}

// GetByID retrieves a variant by id.
func (r *VariantRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Variant, error) {
	query := fmt.Sprintf(`SELECT %s FROM product_variants WHERE id = $1`, variantColumns)
	return r.scan(r.pool.QueryRow(ctx, query, id))
}

// GetBySKU retrieves a variant by SKU.
func (r *VariantRepository) GetBySKU(ctx context.Context, sku string) (*domain.Variant, error) {
	query := fmt.Sprintf(`SELECT %s FROM product_variants WHERE sku = $1`, variantColumns)
	return r.scan(r.pool.QueryRow(ctx, query, sku))
}

func (r *VariantRepository) scan(row pgx.Row) (*domain.Variant, error) {
	var v domain.Variant
	err := row.Scan(
		&v.ID, &v.ProductID, &v.SKU, &v.Color, &v.Size, &v.PriceDeltaCents, &v.Stock, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan variant: %w", err)
	}
	return &v, nil
}

// Update modifies an existing variant. Stock changes through this path are
// absolute sets used by admin edits and imports; checkout never uses it.
func (r *VariantRepository) Update(ctx context.Context, v *domain.Variant) error {
	query := `
		UPDATE product_variants
		SET sku = $1, color = $2, size = $3, price_delta_cents = $4, stock = $5, updated_at = $6
		WHERE id = $7`

	ct, err := r.pool.Exec(ctx, query,
		v.SKU, v.Color, v.Size, v.PriceDeltaCents, v.Stock, time.Now().UTC(), v.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("variant", "sku", v.SKU)
		}
		return fmt.Errorf("update variant: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("variant", v.ID.String())
	}
	return nil
}

// Delete removes a variant.
func (r *VariantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM product_variants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete variant: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("variant", id.String())
	}
	return nil
}
