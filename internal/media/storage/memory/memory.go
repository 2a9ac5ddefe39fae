// Package memory provides an in-process Storage for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/karyatek/storefront/internal/media/storage"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

type entry struct {
	publicID string
	bytes    int64
}

// Storage implements storage.Storage with an in-memory map. It keeps metadata
// only, no image bytes.
type Storage struct {
	mu         sync.RWMutex
	files      map[string]entry
	baseURL    string
	limitBytes int64
}

// New creates an in-memory storage. limitBytes caps the reported usage limit.
func New(baseURL string, limitBytes int64) *Storage {
	return &Storage{
		files:      make(map[string]entry),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		limitBytes: limitBytes,
	}
}

// Upload records the image and mints a deterministic URL.
func (s *Storage) Upload(_ context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	publicID := uuid.New().String()
	size := int64(len(input.Data))
	s.files[publicID] = entry{publicID: publicID, bytes: size}

	format := strings.TrimPrefix(input.ContentType, "image/")
	return &storage.UploadResult{
		PublicID: publicID,
		URL:      fmt.Sprintf("%s/media/%s", s.baseURL, publicID),
		Format:   format,
		Bytes:    size,
	}, nil
}

// Delete removes the image.
func (s *Storage) Delete(_ context.Context, publicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[publicID]; !ok {
		return apperrors.NotFound("media asset", publicID)
	}
	delete(s.files, publicID)
	return nil
}

// Usage reports the stored byte count against the configured limit.
func (s *Storage) Usage(_ context.Context) (*storage.Usage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var used int64
	for _, e := range s.files {
		used += e.bytes
	}
	return &storage.Usage{
		StorageBytes:      used,
		StorageLimitBytes: s.limitBytes,
	}, nil
}

// Len returns the number of stored images.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Has reports whether the image with the given public id exists.
func (s *Storage) Has(publicID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[publicID]
	return ok
}
