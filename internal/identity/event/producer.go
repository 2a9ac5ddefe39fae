package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/karyatek/storefront/internal/identity/domain"
	pkgkafka "github.com/karyatek/storefront/pkg/kafka"
)

// TopicUserRegistered carries user.registered events.
const TopicUserRegistered = "storefront.user.registered"

const aggregateTypeUser = "user"

const sourceIdentity = "storefront-identity"

// UserRegisteredData is the payload of a user.registered event.
type UserRegisteredData struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Provider string `json:"provider,omitempty"`
}

// Producer publishes identity domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an event producer for identity.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, u *domain.User) error {
	data := UserRegisteredData{
		ID:       u.ID.String(),
		Email:    u.Email,
		Name:     u.Name,
		Provider: u.Provider,
	}

	event, err := pkgkafka.NewEvent(TopicUserRegistered, u.ID.String(), aggregateTypeUser, sourceIdentity, data)
	if err != nil {
		return fmt.Errorf("create user.registered event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserRegistered, event); err != nil {
		return fmt.Errorf("publish user.registered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.registered event",
		slog.String("user_id", u.ID.String()),
	)
	return nil
}
