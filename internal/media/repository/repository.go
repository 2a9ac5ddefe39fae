// Package repository defines persistence interfaces for the media service.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/karyatek/storefront/internal/media/domain"
)

// AssetRepository persists hosted asset records.
type AssetRepository interface {
	Create(ctx context.Context, asset *domain.Asset) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error)
	List(ctx context.Context, offset, limit int) ([]domain.Asset, int, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// ListCreatedBefore returns assets uploaded before the cutoff. Used by
	// the cleanup job to find removal candidates.
	ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]domain.Asset, error)
}
