package domain

import (
	"time"

	"github.com/google/uuid"
)

// Allowed content types for image uploads.
var AllowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// MaxFileSize is the maximum allowed upload size in bytes (10 MB).
const MaxFileSize int64 = 10 * 1024 * 1024

// Asset is an image hosted on the CDN, tracked locally so the cleanup job
// can reconcile what the CDN holds against what the catalog references.
type Asset struct {
	ID        uuid.UUID `json:"id"`
	PublicID  string    `json:"public_id"`
	URL       string    `json:"url"`
	Format    string    `json:"format"`
	Bytes     int64     `json:"bytes"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAllowedContentType checks whether the given content type is allowed.
func IsAllowedContentType(contentType string) bool {
	return AllowedContentTypes[contentType]
}
