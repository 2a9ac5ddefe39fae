package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/karyatek/storefront/internal/catalog/domain"
	pkgkafka "github.com/karyatek/storefront/pkg/kafka"
)

// Kafka topics for catalog domain events.
const (
	TopicProductCreated = "storefront.product.created"
	TopicProductUpdated = "storefront.product.updated"
	TopicProductDeleted = "storefront.product.deleted"
)

const aggregateTypeProduct = "product"

const sourceCatalog = "storefront-catalog"

// ProductData is the payload for product.created and product.updated events.
type ProductData struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Slug           string  `json:"slug"`
	CategoryID     *string `json:"category_id,omitempty"`
	BasePriceCents int64   `json:"base_price_cents"`
	Active         bool    `json:"active"`
	VariantCount   int     `json:"variant_count"`
}

// ProductDeletedData is the payload for a product.deleted event.
type ProductDeletedData struct {
	ID string `json:"id"`
}

// Producer publishes catalog domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an event producer for the catalog.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

func productData(p *domain.Product) ProductData {
	var categoryID *string
	if p.CategoryID != nil {
		s := p.CategoryID.String()
		categoryID = &s
	}
	return ProductData{
		ID:             p.ID.String(),
		Name:           p.Name,
		Slug:           p.Slug,
		CategoryID:     categoryID,
		BasePriceCents: p.BasePriceCents,
		Active:         p.Active,
		VariantCount:   len(p.Variants),
	}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateTypeProduct, sourceCatalog, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published catalog event",
		slog.String("topic", topic),
		slog.String("product_id", aggregateID),
	)
	return nil
}

// PublishProductCreated publishes a product.created event.
func (p *Producer) PublishProductCreated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductCreated, product.ID.String(), productData(product))
}

// PublishProductUpdated publishes a product.updated event.
func (p *Producer) PublishProductUpdated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductUpdated, product.ID.String(), productData(product))
}

// PublishProductDeleted publishes a product.deleted event.
func (p *Producer) PublishProductDeleted(ctx context.Context, id uuid.UUID) error {
	return p.publish(ctx, TopicProductDeleted, id.String(), ProductDeletedData{ID: id.String()})
}
