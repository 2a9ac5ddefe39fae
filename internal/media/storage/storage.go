package storage

import "context"

// Storage is the CDN the media service pushes images to.
type Storage interface {
	// Upload stores an image and returns the hosted asset details.
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)

	// Delete removes the image with the given public id.
	Delete(ctx context.Context, publicID string) error

	// Usage reports the account's current consumption against its plan.
	Usage(ctx context.Context) (*Usage, error)
}

// UploadInput holds the parameters for uploading an image.
type UploadInput struct {
	FileName    string
	ContentType string
	Data        []byte
}

// UploadResult describes the hosted image.
type UploadResult struct {
	PublicID string
	URL      string
	Format   string
	Bytes    int64
	Width    int
	Height   int
}

// Usage is the CDN account's consumption snapshot.
type Usage struct {
	StorageBytes      int64
	StorageLimitBytes int64
	CreditsUsed       float64
	CreditsLimit      float64
}

// StorageRatio returns storage consumption as a fraction of the limit.
func (u *Usage) StorageRatio() float64 {
	if u.StorageLimitBytes <= 0 {
		return 0
	}
	return float64(u.StorageBytes) / float64(u.StorageLimitBytes)
}

// CreditsRatio returns credit consumption as a fraction of the limit.
func (u *Usage) CreditsRatio() float64 {
	if u.CreditsLimit <= 0 {
		return 0
	}
	return u.CreditsUsed / u.CreditsLimit
}
