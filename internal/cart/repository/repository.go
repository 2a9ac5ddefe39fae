package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/karyatek/storefront/internal/cart/domain"
	"github.com/karyatek/storefront/internal/owner"
)

// CartRepository persists carts and their lines.
type CartRepository interface {
	// GetOrCreate returns the owner's cart, creating an empty one on first
	// use. Lines carry catalog pricing projections.
	GetOrCreate(ctx context.Context, own owner.Owner) (*domain.Cart, error)

	// AddLine adds quantity of a variant to the cart, merging with an
	// existing line for the same variant.
	AddLine(ctx context.Context, cartID, variantID uuid.UUID, quantity int) error

	// SetLineQuantity replaces the quantity of an existing line.
	SetLineQuantity(ctx context.Context, cartID, variantID uuid.UUID, quantity int) error

	// RemoveLine deletes the line for the given variant.
	RemoveLine(ctx context.Context, cartID, variantID uuid.UUID) error

	// Clear deletes every line but keeps the cart row.
	Clear(ctx context.Context, cartID uuid.UUID) error
}
