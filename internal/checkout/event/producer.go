package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/karyatek/storefront/internal/checkout/domain"
	pkgkafka "github.com/karyatek/storefront/pkg/kafka"
)

// TopicOrderCreated carries order.created events.
const TopicOrderCreated = "storefront.order.created"

const aggregateTypeOrder = "order"

const sourceCheckout = "storefront-checkout"

// OrderCreatedData is the payload of an order.created event.
type OrderCreatedData struct {
	ID            string `json:"id"`
	OrderNumber   string `json:"order_number"`
	PaymentMethod string `json:"payment_method"`
	SubtotalCents int64  `json:"subtotal_cents"`
	TaxCents      int64  `json:"tax_cents"`
	ShippingCents int64  `json:"shipping_cents"`
	TotalCents    int64  `json:"total_cents"`
	LineCount     int    `json:"line_count"`
	Email         string `json:"email"`
}

// Producer publishes checkout domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an event producer for checkout.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// PublishOrderCreated publishes an order.created event.
func (p *Producer) PublishOrderCreated(ctx context.Context, o *domain.Order) error {
	data := OrderCreatedData{
		ID:            o.ID.String(),
		OrderNumber:   o.OrderNumber,
		PaymentMethod: o.PaymentMethod,
		SubtotalCents: o.SubtotalCents,
		TaxCents:      o.TaxCents,
		ShippingCents: o.ShippingCents,
		TotalCents:    o.TotalCents,
		LineCount:     len(o.Lines),
		Email:         o.ShippingAddress.Email,
	}

	event, err := pkgkafka.NewEvent(TopicOrderCreated, o.ID.String(), aggregateTypeOrder, sourceCheckout, data)
	if err != nil {
		return fmt.Errorf("create order.created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderCreated, event); err != nil {
		return fmt.Errorf("publish order.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.created event",
		slog.String("order_id", o.ID.String()),
		slog.String("order_number", o.OrderNumber),
	)
	return nil
}
