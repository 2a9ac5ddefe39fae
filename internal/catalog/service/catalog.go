package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/karyatek/storefront/internal/catalog/cache"
	"github.com/karyatek/storefront/internal/catalog/domain"
	"github.com/karyatek/storefront/internal/catalog/event"
	"github.com/karyatek/storefront/internal/catalog/repository"
	apperrors "github.com/karyatek/storefront/pkg/errors"
	"github.com/karyatek/storefront/pkg/slug"
)

// CatalogService implements the business logic for browsing and managing the
// product catalog.
type CatalogService struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	variants   repository.VariantRepository
	images     repository.ImageRepository
	cache      *cache.ProductCache
	producer   *event.Producer
	logger     *slog.Logger
}

// NewCatalogService creates a catalog service. cache may be nil, in which
// case product reads always hit the database.
func NewCatalogService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	variants repository.VariantRepository,
	images repository.ImageRepository,
	productCache *cache.ProductCache,
	producer *event.Producer,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		products:   products,
		categories: categories,
		variants:   variants,
		images:     images,
		cache:      productCache,
		producer:   producer,
		logger:     logger,
	}
}

// CreateProductInput holds the parameters for creating a product.
type CreateProductInput struct {
	Name           string
	Description    string
	CategoryID     *uuid.UUID
	BasePriceCents int64
	Active         bool
}

// UpdateProductInput holds the parameters for updating a product. Nil fields
// are left unchanged.
type UpdateProductInput struct {
	Name           *string
	Description    *string
	CategoryID     *uuid.UUID
	BasePriceCents *int64
	Active         *bool
}

// ListProducts returns products matching the filter with the total count.
func (s *CatalogService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// GetProduct retrieves a product by id, serving from the cache when possible.
func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	if s.cache != nil {
		if p, err := s.cache.GetByID(ctx, id); err == nil {
			return p, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			s.logger.WarnContext(ctx, "product cache read failed",
				slog.String("product_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	s.fillCache(ctx, p)
	return p, nil
}

// GetProductBySlug retrieves a product by slug, serving from the cache when
// possible.
func (s *CatalogService) GetProductBySlug(ctx context.Context, productSlug string) (*domain.Product, error) {
	if s.cache != nil {
		if p, err := s.cache.GetBySlug(ctx, productSlug); err == nil {
			return p, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			s.logger.WarnContext(ctx, "product cache read failed",
				slog.String("slug", productSlug),
				slog.String("error", err.Error()),
			)
		}
	}

	p, err := s.products.GetBySlug(ctx, productSlug)
	if err != nil {
		return nil, fmt.Errorf("get product by slug: %w", err)
	}

	s.fillCache(ctx, p)
	return p, nil
}

func (s *CatalogService) fillCache(ctx context.Context, p *domain.Product) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, p); err != nil {
		s.logger.WarnContext(ctx, "product cache write failed",
			slog.String("product_id", p.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CatalogService) invalidateCache(ctx context.Context, id uuid.UUID, productSlug string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id, productSlug); err != nil {
		s.logger.WarnContext(ctx, "product cache invalidation failed",
			slog.String("product_id", id.String()),
			slog.String("error", err.Error()),
		)
	}
}

// CreateProduct creates a product with a generated slug.
func (s *CatalogService) CreateProduct(ctx context.Context, input *CreateProductInput) (*domain.Product, error) {
	if input.Name == "" {
		return nil, apperrors.InvalidInput("product name is required")
	}
	if input.BasePriceCents < 0 {
		return nil, apperrors.InvalidInput("base price must not be negative")
	}

	now := time.Now().UTC()
	p := &domain.Product{
		ID:             uuid.New(),
		CategoryID:     input.CategoryID,
		Name:           input.Name,
		Slug:           slug.Generate(input.Name),
		Description:    input.Description,
		BasePriceCents: input.BasePriceCents,
		Active:         input.Active,
		Variants:       []domain.Variant{},
		Images:         []domain.Image{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.products.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.publishProductEvent(ctx, func() error { return s.producer.PublishProductCreated(ctx, p) }, p.ID)

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", p.ID.String()),
		slog.String("slug", p.Slug),
	)

	return p, nil
}

// UpdateProduct applies the non-nil fields of input to an existing product.
func (s *CatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, input *UpdateProductInput) (*domain.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load product for update: %w", err)
	}

	oldSlug := p.Slug

	if input.Name != nil {
		if *input.Name == "" {
			return nil, apperrors.InvalidInput("product name must not be empty")
		}
		p.Name = *input.Name
		p.Slug = slug.Generate(*input.Name)
	}
	if input.Description != nil {
		p.Description = *input.Description
	}
	if input.CategoryID != nil {
		p.CategoryID = input.CategoryID
	}
	if input.BasePriceCents != nil {
		if *input.BasePriceCents < 0 {
			return nil, apperrors.InvalidInput("base price must not be negative")
		}
		p.BasePriceCents = *input.BasePriceCents
	}
	if input.Active != nil {
		p.Active = *input.Active
	}

	if err := s.products.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.invalidateCache(ctx, p.ID, oldSlug)
	s.publishProductEvent(ctx, func() error { return s.producer.PublishProductUpdated(ctx, p) }, p.ID)

	return p, nil
}

// DeleteProduct removes a product, its variants, and its image links.
func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load product for delete: %w", err)
	}

	if err := s.products.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.invalidateCache(ctx, id, p.Slug)
	s.publishProductEvent(ctx, func() error { return s.producer.PublishProductDeleted(ctx, id) }, id)

	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id.String()))
	return nil
}

func (s *CatalogService) publishProductEvent(ctx context.Context, publish func() error, productID uuid.UUID) {
	if s.producer == nil {
		return
	}
	if err := publish(); err != nil {
		// Event delivery never fails catalog writes.
		s.logger.ErrorContext(ctx, "failed to publish catalog event",
			slog.String("product_id", productID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// ListCategories returns all categories.
func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// CreateCategory creates a category with a generated slug.
func (s *CatalogService) CreateCategory(ctx context.Context, name, description string) (*domain.Category, error) {
	if name == "" {
		return nil, apperrors.InvalidInput("category name is required")
	}

	now := time.Now().UTC()
	c := &domain.Category{
		ID:          uuid.New(),
		Name:        name,
		Slug:        slug.Generate(name),
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.categories.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// UpdateCategory renames a category.
func (s *CatalogService) UpdateCategory(ctx context.Context, id uuid.UUID, name, description string) (*domain.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load category for update: %w", err)
	}

	if name != "" {
		c.Name = name
		c.Slug = slug.Generate(name)
	}
	c.Description = description

	if err := s.categories.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	return c, nil
}

// DeleteCategory removes a category. Its products keep existing uncategorized.
func (s *CatalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := s.categories.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// AddVariantInput holds the parameters for creating a variant.
type AddVariantInput struct {
	SKU             string
	Color           string
	Size            string
	PriceDeltaCents int64
	Stock           int
}

// AddVariant creates a variant under the given product.
func (s *CatalogService) AddVariant(ctx context.Context, productID uuid.UUID, input *AddVariantInput) (*domain.Variant, error) {
	if input.SKU == "" {
		return nil, apperrors.InvalidInput("variant sku is required")
	}
	if input.Stock < 0 {
		return nil, apperrors.InvalidInput("stock must not be negative")
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load product for variant: %w", err)
	}

	now := time.Now().UTC()
	v := &domain.Variant{
		ID:              uuid.New(),
		ProductID:       p.ID,
		SKU:             input.SKU,
		Color:           input.Color,
		Size:            input.Size,
		PriceDeltaCents: input.PriceDeltaCents,
		Stock:           input.Stock,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.variants.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("create variant: %w", err)
	}

	s.invalidateCache(ctx, p.ID, p.Slug)
	return v, nil
}

// UpdateVariantInput holds the parameters for updating a variant. Nil fields
// are left unchanged.
type UpdateVariantInput struct {
	SKU             *string
	Color           *string
	Size            *string
	PriceDeltaCents *int64
	Stock           *int
}

// UpdateVariant applies the non-nil fields of input to an existing variant.
func (s *CatalogService) UpdateVariant(ctx context.Context, id uuid.UUID, input *UpdateVariantInput) (*domain.Variant, error) {
	v, err := s.variants.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load variant for update: %w", err)
	}

	if input.SKU != nil {
		if *input.SKU == "" {
			return nil, apperrors.InvalidInput("variant sku must not be empty")
		}
		v.SKU = *input.SKU
	}
	if input.Color != nil {
		v.Color = *input.Color
	}
	if input.Size != nil {
		v.Size = *input.Size
	}
	if input.PriceDeltaCents != nil {
		v.PriceDeltaCents = *input.PriceDeltaCents
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, apperrors.InvalidInput("stock must not be negative")
		}
		v.Stock = *input.Stock
	}

	if err := s.variants.Update(ctx, v); err != nil {
		return nil, fmt.Errorf("update variant: %w", err)
	}

	s.invalidateProductOf(ctx, v)
	return v, nil
}

// DeleteVariant removes a variant.
func (s *CatalogService) DeleteVariant(ctx context.Context, id uuid.UUID) error {
	v, err := s.variants.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load variant for delete: %w", err)
	}

	if err := s.variants.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete variant: %w", err)
	}

	s.invalidateProductOf(ctx, v)
	return nil
}

func (s *CatalogService) invalidateProductOf(ctx context.Context, v *domain.Variant) {
	if s.cache == nil {
		return
	}
	p, err := s.products.GetByID(ctx, v.ProductID)
	if err != nil {
		s.invalidateCache(ctx, v.ProductID, "")
		return
	}
	s.invalidateCache(ctx, p.ID, p.Slug)
}

// AttachImage links an uploaded CDN asset to a product.
func (s *CatalogService) AttachImage(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, assetID uuid.UUID, altText string, position int) (*domain.Image, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load product for image: %w", err)
	}

	img := &domain.Image{
		ID:        uuid.New(),
		ProductID: p.ID,
		VariantID: variantID,
		AssetID:   assetID,
		AltText:   altText,
		Position:  position,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.images.Attach(ctx, img); err != nil {
		return nil, fmt.Errorf("attach image: %w", err)
	}

	s.invalidateCache(ctx, p.ID, p.Slug)
	return img, nil
}

// DetachImage removes a product image link.
func (s *CatalogService) DetachImage(ctx context.Context, id uuid.UUID) error {
	if err := s.images.Detach(ctx, id); err != nil {
		return fmt.Errorf("detach image: %w", err)
	}
	return nil
}
