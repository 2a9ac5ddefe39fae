package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/karyatek/storefront/internal/catalog/domain"
	"github.com/karyatek/storefront/internal/catalog/repository"
	"github.com/karyatek/storefront/pkg/database"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

const productAggregateColumns = `
	p.id, p.category_id, p.name, p.slug, p.description, p.base_price_cents,
	p.active, p.created_at, p.updated_at,
	COALESCE(
		(SELECT JSONB_AGG(JSONB_BUILD_OBJECT(
			'id', v.id,
			'product_id', v.product_id,
			'sku', v.sku,
			'color', v.color,
			'size', v.size,
			'price_delta_cents', v.price_delta_cents,
			'stock', v.stock,
			'created_at', v.created_at,
			'updated_at', v.updated_at
		) ORDER BY v.sku)
		FROM product_variants v WHERE v.product_id = p.id),
		'[]'::jsonb
	) AS variants,
	COALESCE(
		(SELECT JSONB_AGG(JSONB_BUILD_OBJECT(
			'id', i.id,
			'product_id', i.product_id,
			'variant_id', i.variant_id,
			'asset_id', i.asset_id,
			'url', a.url,
			'alt_text', i.alt_text,
			'position', i.position,
			'created_at', i.created_at
		) ORDER BY i.position)
		FROM product_images i JOIN media_assets a ON a.id = i.asset_id
		WHERE i.product_id = p.id),
		'[]'::jsonb
	) AS images`

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (id, category_id, name, slug, description, base_price_cents, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.CategoryID, p.Name, p.Slug, p.Description, p.BasePriceCents, p.Active, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetByID loads a product with variants and images in a single query.
func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products p WHERE p.id = $1`, productAggregateColumns)
	return r.scanAggregate(r.pool.QueryRow(ctx, query, id), id.String())
}

// GetBySlug loads a product with variants and images in a single query.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products p WHERE p.slug = $1`, productAggregateColumns)
	return r.scanAggregate(r.pool.QueryRow(ctx, query, slug), slug)
}

func (r *ProductRepository) scanAggregate(row pgx.Row, ref string) (*domain.Product, error) {
	var (
		p            domain.Product
		variantsJSON []byte
		imagesJSON   []byte
	)

	err := row.Scan(
		&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.Description, &p.BasePriceCents,
		&p.Active, &p.CreatedAt, &p.UpdatedAt, &variantsJSON, &imagesJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", ref)
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}

	if err := json.Unmarshal(variantsJSON, &p.Variants); err != nil {
		return nil, fmt.Errorf("unmarshal variants: %w", err)
	}
	if err := json.Unmarshal(imagesJSON, &p.Images); err != nil {
		return nil, fmt.Errorf("unmarshal images: %w", err)
	}

	return &p, nil
}

// List returns products matching the filter with the total count, computed
// with count(*) OVER() so one query serves both.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.CategoryID != nil {
		conditions = append(conditions, fmt.Sprintf("p.category_id = $%d", argIndex))
		args = append(args, *filter.CategoryID)
		argIndex++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(p.name ILIKE $%d OR p.description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}

	if filter.ActiveOnly {
		conditions = append(conditions, "p.active")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM products p
		%s
		ORDER BY p.created_at DESC
		LIMIT $%d OFFSET $%d`,
		productAggregateColumns, whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var totalCount int
	products := make([]domain.Product, 0)

	for rows.Next() {
		var (
			p            domain.Product
			variantsJSON []byte
			imagesJSON   []byte
		)

		if err := rows.Scan(
			&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.Description, &p.BasePriceCents,
			&p.Active, &p.CreatedAt, &p.UpdatedAt, &variantsJSON, &imagesJSON, &totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}

		if err := json.Unmarshal(variantsJSON, &p.Variants); err != nil {
			return nil, 0, fmt.Errorf("unmarshal variants: %w", err)
		}
		if err := json.Unmarshal(imagesJSON, &p.Images); err != nil {
			return nil, 0, fmt.Errorf("unmarshal images: %w", err)
		}

		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, totalCount, nil
}

// Update modifies an existing product.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	query := `
		UPDATE products
		SET category_id = $1, name = $2, slug = $3, description = $4,
		    base_price_cents = $5, active = $6, updated_at = $7
		WHERE id = $8`

	ct, err := r.pool.Exec(ctx, query,
		p.CategoryID, p.Name, p.Slug, p.Description, p.BasePriceCents, p.Active, time.Now().UTC(), p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return fmt.Errorf("update product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", p.ID.String())
	}
	return nil
}

// Delete removes a product; variants and images cascade.
func (r *ProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id.String())
	}
	return nil
}

// isUniqueViolation reports whether the error is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
