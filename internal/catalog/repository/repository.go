package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/karyatek/storefront/internal/catalog/domain"
)

// ProductFilter defines filter criteria for listing products.
type ProductFilter struct {
	CategoryID *uuid.UUID
	Search     string
	ActiveOnly bool
	Page       int
	PerPage    int
}

// CategoryRepository persists categories.
type CategoryRepository interface {
	Create(ctx context.Context, c *domain.Category) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	List(ctx context.Context) ([]domain.Category, error)
	Update(ctx context.Context, c *domain.Category) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProductRepository persists products with their variants and images.
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error

	// GetByID loads a product with variants and images attached.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)

	// GetBySlug loads a product with variants and images attached.
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)

	// List returns products matching the filter plus the total count.
	// Variants and images are attached.
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)

	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// VariantRepository persists product variants.
type VariantRepository interface {
	Create(ctx context.Context, v *domain.Variant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Variant, error)
	GetBySKU(ctx context.Context, sku string) (*domain.Variant, error)
	Update(ctx context.Context, v *domain.Variant) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ImageRepository links CDN assets to products.
type ImageRepository interface {
	Attach(ctx context.Context, img *domain.Image) error
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]domain.Image, error)
	Detach(ctx context.Context, id uuid.UUID) error

	// ReferencedAssetIDs returns the set of media asset IDs any product
	// image still points at. Used by the media cleanup job.
	ReferencedAssetIDs(ctx context.Context) (map[uuid.UUID]struct{}, error)
}
