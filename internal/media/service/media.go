// Package service implements the media business logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/karyatek/storefront/internal/media/domain"
	"github.com/karyatek/storefront/internal/media/event"
	"github.com/karyatek/storefront/internal/media/repository"
	"github.com/karyatek/storefront/internal/media/storage"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

// MediaService uploads images to the CDN and tracks them locally.
type MediaService struct {
	assets   repository.AssetRepository
	storage  storage.Storage
	producer *event.Producer
	logger   *slog.Logger
}

// NewMediaService creates a media service. producer may be nil.
func NewMediaService(
	assets repository.AssetRepository,
	store storage.Storage,
	producer *event.Producer,
	logger *slog.Logger,
) *MediaService {
	return &MediaService{
		assets:   assets,
		storage:  store,
		producer: producer,
		logger:   logger,
	}
}

// UploadInput holds the parameters for uploading an image.
type UploadInput struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Upload validates the image, pushes it to the CDN, and records the asset.
func (s *MediaService) Upload(ctx context.Context, input *UploadInput) (*domain.Asset, error) {
	if input.FileName == "" {
		return nil, apperrors.InvalidInput("file name is required")
	}
	if !domain.IsAllowedContentType(input.ContentType) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("content type %q is not allowed", input.ContentType))
	}
	size := int64(len(input.Data))
	if size == 0 {
		return nil, apperrors.InvalidInput("file is empty")
	}
	if size > domain.MaxFileSize {
		return nil, apperrors.InvalidInput(fmt.Sprintf("file size %d exceeds maximum of %d bytes", size, domain.MaxFileSize))
	}

	result, err := s.storage.Upload(ctx, &storage.UploadInput{
		FileName:    input.FileName,
		ContentType: input.ContentType,
		Data:        input.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	asset := &domain.Asset{
		ID:        uuid.New(),
		PublicID:  result.PublicID,
		URL:       result.URL,
		Format:    result.Format,
		Bytes:     result.Bytes,
		Width:     result.Width,
		Height:    result.Height,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.assets.Create(ctx, asset); err != nil {
		// The CDN copy is orphaned without a local record; best effort removal.
		if delErr := s.storage.Delete(ctx, result.PublicID); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to clean up storage after db error",
				slog.String("public_id", result.PublicID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("create media asset record: %w", err)
	}

	if s.producer != nil {
		if err := s.producer.PublishMediaUploaded(ctx, asset); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish media.uploaded event",
				slog.String("asset_id", asset.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "media uploaded",
		slog.String("asset_id", asset.ID.String()),
		slog.String("public_id", asset.PublicID),
		slog.Int64("bytes", asset.Bytes),
	)
	return asset, nil
}

// UploadImage uploads image bytes found in an import archive, sniffing the
// content type from the data. Returns the stored asset id.
func (s *MediaService) UploadImage(ctx context.Context, filename string, data []byte) (uuid.UUID, error) {
	asset, err := s.Upload(ctx, &UploadInput{
		FileName:    filename,
		ContentType: http.DetectContentType(data),
		Data:        data,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return asset.ID, nil
}

// GetAsset returns the asset with the given id.
func (s *MediaService) GetAsset(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	asset, err := s.assets.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get media asset: %w", err)
	}
	return asset, nil
}

// ListAssets returns a page of assets with the total count.
func (s *MediaService) ListAssets(ctx context.Context, offset, limit int) ([]domain.Asset, int, error) {
	assets, total, err := s.assets.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list media assets: %w", err)
	}
	return assets, total, nil
}

// DeleteAsset removes the asset from the CDN and the local record.
func (s *MediaService) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	asset, err := s.assets.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get media asset for delete: %w", err)
	}

	if err := s.storage.Delete(ctx, asset.PublicID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		s.logger.ErrorContext(ctx, "failed to delete from storage",
			slog.String("asset_id", id.String()),
			slog.String("public_id", asset.PublicID),
			slog.String("error", err.Error()),
		)
		// Continue with the local delete.
	}

	if err := s.assets.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete media asset: %w", err)
	}

	if s.producer != nil {
		if err := s.producer.PublishMediaDeleted(ctx, id, asset.PublicID); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish media.deleted event",
				slog.String("asset_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "media deleted", slog.String("asset_id", id.String()))
	return nil
}
