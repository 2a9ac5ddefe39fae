package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/karyatek/storefront/internal/checkout/domain"
	"github.com/karyatek/storefront/internal/owner"
)

// OrderRepository reads persisted orders. Order creation happens inside the
// checkout transaction and is owned by the checkout service.
type OrderRepository interface {
	// ListByOwner returns the owner's orders newest first with the total
	// count. Lines are attached.
	ListByOwner(ctx context.Context, own owner.Owner, page, perPage int) ([]domain.Order, int, error)

	// GetByIDAndOwner returns the order only if it belongs to the owner.
	// Foreign orders are reported as not found, never forbidden.
	GetByIDAndOwner(ctx context.Context, id uuid.UUID, own owner.Owner) (*domain.Order, error)

	// GetByID returns an order regardless of owner. Administrative path.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)

	// UpdateStatus sets the order's lifecycle status.
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}
