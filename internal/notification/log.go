package notification

import (
	"context"
	"log/slog"

	"github.com/karyatek/storefront/internal/checkout/domain"
)

// LogSender logs confirmations instead of sending them. Used in development
// and wherever no mail server is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a logging confirmation sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendOrderConfirmation logs the confirmation and succeeds.
func (s *LogSender) SendOrderConfirmation(ctx context.Context, order *domain.Order) error {
	s.logger.InfoContext(ctx, "order confirmation (log sender)",
		slog.String("order_number", order.OrderNumber),
		slog.String("recipient", order.ShippingAddress.Email),
		slog.Int64("total_cents", order.TotalCents),
		slog.Int("lines", len(order.Lines)),
	)
	return nil
}
