// Package event publishes media domain events to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/karyatek/storefront/internal/media/domain"
	pkgkafka "github.com/karyatek/storefront/pkg/kafka"
)

// Kafka topics for media domain events.
const (
	TopicMediaUploaded = "storefront.media.uploaded"
	TopicMediaDeleted  = "storefront.media.deleted"
)

const aggregateTypeMedia = "media_asset"

const sourceMedia = "storefront-media"

// MediaUploadedData is the payload for a media.uploaded event.
type MediaUploadedData struct {
	ID       string `json:"id"`
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
	Format   string `json:"format"`
	Bytes    int64  `json:"bytes"`
}

// MediaDeletedData is the payload for a media.deleted event.
type MediaDeletedData struct {
	ID       string `json:"id"`
	PublicID string `json:"public_id"`
}

// Producer publishes media domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an event producer for the media service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateTypeMedia, sourceMedia, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published media event",
		slog.String("topic", topic),
		slog.String("asset_id", aggregateID),
	)
	return nil
}

// PublishMediaUploaded publishes a media.uploaded event.
func (p *Producer) PublishMediaUploaded(ctx context.Context, asset *domain.Asset) error {
	return p.publish(ctx, TopicMediaUploaded, asset.ID.String(), MediaUploadedData{
		ID:       asset.ID.String(),
		PublicID: asset.PublicID,
		URL:      asset.URL,
		Format:   asset.Format,
		Bytes:    asset.Bytes,
	})
}

// PublishMediaDeleted publishes a media.deleted event.
func (p *Producer) PublishMediaDeleted(ctx context.Context, id uuid.UUID, publicID string) error {
	return p.publish(ctx, TopicMediaDeleted, id.String(), MediaDeletedData{
		ID:       id.String(),
		PublicID: publicID,
	})
}
