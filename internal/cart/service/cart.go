package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/karyatek/storefront/internal/cart/domain"
	"github.com/karyatek/storefront/internal/cart/repository"
	catalogdomain "github.com/karyatek/storefront/internal/catalog/domain"
	"github.com/karyatek/storefront/internal/owner"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

// maxLineQuantity bounds a single cart line.
const maxLineQuantity = 99

// CatalogReader is the slice of the catalog the cart needs: variant lookup
// for validation and product lookup for the active flag.
type CatalogReader interface {
	GetVariant(ctx context.Context, id uuid.UUID) (*catalogdomain.Variant, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*catalogdomain.Product, error)
}

// CartService implements cart business logic.
type CartService struct {
	carts   repository.CartRepository
	catalog CatalogReader
	logger  *slog.Logger
}

// NewCartService creates a cart service.
func NewCartService(carts repository.CartRepository, catalog CatalogReader, logger *slog.Logger) *CartService {
	return &CartService{carts: carts, catalog: catalog, logger: logger}
}

// GetCart returns the owner's cart, creating it lazily.
func (s *CartService) GetCart(ctx context.Context, own owner.Owner) (*domain.Cart, error) {
	cart, err := s.carts.GetOrCreate(ctx, own)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// AddItem adds quantity of a variant to the owner's cart. The variant must
// exist, belong to an active product, and have stock to cover the resulting
// line quantity. Stock is re-checked authoritatively at checkout.
func (s *CartService) AddItem(ctx context.Context, own owner.Owner, variantID uuid.UUID, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, apperrors.InvalidInput("quantity must be at least 1")
	}
	if quantity > maxLineQuantity {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", maxLineQuantity))
	}

	variant, err := s.catalog.GetVariant(ctx, variantID)
	if err != nil {
		return nil, fmt.Errorf("look up variant: %w", err)
	}

	product, err := s.catalog.GetProduct(ctx, variant.ProductID)
	if err != nil {
		return nil, fmt.Errorf("look up product: %w", err)
	}
	if !product.Active {
		return nil, apperrors.Unprocessable("PRODUCT_INACTIVE", "product is no longer available")
	}

	cart, err := s.carts.GetOrCreate(ctx, own)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	requested := quantity
	for _, l := range cart.Lines {
		if l.VariantID == variantID {
			requested += l.Quantity
			break
		}
	}
	if requested > variant.Stock {
		return nil, insufficientStock(variantID, variant.Stock, requested)
	}

	if err := s.carts.AddLine(ctx, cart.ID, variantID, quantity); err != nil {
		return nil, fmt.Errorf("add cart line: %w", err)
	}

	s.logger.InfoContext(ctx, "cart line added",
		slog.String("cart_id", cart.ID.String()),
		slog.String("variant_id", variantID.String()),
		slog.Int("quantity", quantity),
	)

	return s.GetCart(ctx, own)
}

// UpdateItem replaces a line's quantity. Quantity 0 removes the line.
func (s *CartService) UpdateItem(ctx context.Context, own owner.Owner, variantID uuid.UUID, quantity int) (*domain.Cart, error) {
	if quantity < 0 {
		return nil, apperrors.InvalidInput("quantity must not be negative")
	}
	if quantity > maxLineQuantity {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", maxLineQuantity))
	}

	cart, err := s.carts.GetOrCreate(ctx, own)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	if quantity == 0 {
		if err := s.carts.RemoveLine(ctx, cart.ID, variantID); err != nil {
			return nil, fmt.Errorf("remove cart line: %w", err)
		}
		return s.GetCart(ctx, own)
	}

	variant, err := s.catalog.GetVariant(ctx, variantID)
	if err != nil {
		return nil, fmt.Errorf("look up variant: %w", err)
	}
	if quantity > variant.Stock {
		return nil, insufficientStock(variantID, variant.Stock, quantity)
	}

	if err := s.carts.SetLineQuantity(ctx, cart.ID, variantID, quantity); err != nil {
		return nil, fmt.Errorf("set cart line quantity: %w", err)
	}

	return s.GetCart(ctx, own)
}

// RemoveItem deletes a line from the owner's cart.
func (s *CartService) RemoveItem(ctx context.Context, own owner.Owner, variantID uuid.UUID) (*domain.Cart, error) {
	cart, err := s.carts.GetOrCreate(ctx, own)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	if err := s.carts.RemoveLine(ctx, cart.ID, variantID); err != nil {
		return nil, fmt.Errorf("remove cart line: %w", err)
	}

	return s.GetCart(ctx, own)
}

// ClearCart empties the owner's cart.
func (s *CartService) ClearCart(ctx context.Context, own owner.Owner) (*domain.Cart, error) {
	cart, err := s.carts.GetOrCreate(ctx, own)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	if err := s.carts.Clear(ctx, cart.ID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	return s.GetCart(ctx, own)
}

func insufficientStock(variantID uuid.UUID, available, requested int) error {
	return apperrors.Unprocessable("INSUFFICIENT_STOCK", "not enough stock for variant").
		WithDetail("variant_id", variantID.String()).
		WithDetail("available", fmt.Sprintf("%d", available)).
		WithDetail("requested", fmt.Sprintf("%d", requested))
}
