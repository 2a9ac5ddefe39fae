package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/karyatek/storefront/internal/media/repository"
	"github.com/karyatek/storefront/internal/media/storage"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

// ReferenceSource reports which assets the catalog still points at.
type ReferenceSource interface {
	ReferencedAssetIDs(ctx context.Context) (map[uuid.UUID]struct{}, error)
}

// Cleaner removes aged assets that no catalog image references anymore.
type Cleaner struct {
	assets  repository.AssetRepository
	storage storage.Storage
	refs    ReferenceSource
	maxAge  time.Duration
	logger  *slog.Logger
}

// NewCleaner creates a cleanup job. Assets younger than maxAge are never
// touched, so an upload always has time to be attached to a product.
func NewCleaner(
	assets repository.AssetRepository,
	store storage.Storage,
	refs ReferenceSource,
	maxAge time.Duration,
	logger *slog.Logger,
) *Cleaner {
	return &Cleaner{
		assets:  assets,
		storage: store,
		refs:    refs,
		maxAge:  maxAge,
		logger:  logger,
	}
}

// Cleanup deletes every unreferenced asset older than maxAge and returns the
// number removed.
func (c *Cleaner) Cleanup(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-c.maxAge)

	candidates, err := c.assets.ListCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list cleanup candidates: %w", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	referenced, err := c.refs.ReferencedAssetIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("load referenced asset ids: %w", err)
	}

	removed := 0
	for _, asset := range candidates {
		if _, ok := referenced[asset.ID]; ok {
			continue
		}

		if err := c.storage.Delete(ctx, asset.PublicID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			c.logger.ErrorContext(ctx, "failed to delete asset from storage",
				slog.String("asset_id", asset.ID.String()),
				slog.String("public_id", asset.PublicID),
				slog.String("error", err.Error()),
			)
			// Keep the record so the next run retries the CDN delete.
			continue
		}

		if err := c.assets.Delete(ctx, asset.ID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			c.logger.ErrorContext(ctx, "failed to delete asset record",
				slog.String("asset_id", asset.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}

	if removed > 0 {
		c.logger.InfoContext(ctx, "media cleanup removed unreferenced assets",
			slog.Int("removed", removed),
			slog.Int("candidates", len(candidates)),
		)
	}
	return removed, nil
}

// Run executes cleanup on the given interval until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Cleanup(ctx); err != nil {
				c.logger.ErrorContext(ctx, "media cleanup failed", slog.String("error", err.Error()))
			}
		}
	}
}
