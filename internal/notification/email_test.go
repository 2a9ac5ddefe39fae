package notification

import (
	"context"
	"log/slog"
	"net/smtp"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karyatek/storefront/internal/checkout/domain"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func confirmationOrder() *domain.Order {
	order := &domain.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD20250815120000ab12",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusCompleted,
		ShippingAddress: domain.Address{
			FullName:     "Maja Lindqvist",
			Email:        "maja@example.com",
			AddressLine1: "Storgatan 12",
			City:         "Stockholm",
			PostalCode:   "111 22",
			Country:      "SE",
		},
		Lines: []domain.OrderLine{
			{
				ProductName:    "Linen Shirt",
				VariantLabel:   "White / M",
				SKU:            "SHRT-M-WHT",
				UnitPriceCents: 3999,
				Quantity:       2,
			},
			{
				ProductName:    "Wool Scarf",
				SKU:            "SCRF-GRY",
				UnitPriceCents: 2500,
				Quantity:       1,
			},
		},
	}
	order.ComputeTotals()
	return order
}

func TestBuildConfirmationMessage(t *testing.T) {
	order := confirmationOrder()

	cfg := SMTPConfig{
		From:         "shop@storefront.test",
		FromName:     "Storefront",
		SupportEmail: "support@storefront.test",
	}
	msg, err := buildConfirmationMessage(cfg, "maja@example.com", order)

	require.NoError(t, err)
	text := string(msg)

	assert.Contains(t, text, "From: Storefront <shop@storefront.test>\r\n")
	assert.Contains(t, text, "mailto:support@storefront.test")
	assert.Contains(t, text, "To: maja@example.com\r\n")
	assert.Contains(t, text, "Subject: ")
	assert.Contains(t, text, order.OrderNumber)
	assert.Contains(t, text, "Content-Type: text/html")

	assert.Contains(t, text, "Linen Shirt")
	assert.Contains(t, text, "(White / M)")
	assert.Contains(t, text, "SCRF-GRY")
	assert.Contains(t, text, "Maja Lindqvist")
	assert.Contains(t, text, "Storgatan 12")

	// 2x3999 + 2500 = 10498 subtotal, tax 2625, shipping free above threshold.
	assert.Contains(t, text, "104.98")
	assert.Contains(t, text, "26.25")
	assert.Contains(t, text, "Free")
	assert.Contains(t, text, "131.23")
}

func TestSendOrderConfirmation(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	sender := NewSMTPSender(SMTPConfig{
		Host: "mail.test", Port: 587, From: "shop@storefront.test",
	}, testLogger())
	sender.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := sender.SendOrderConfirmation(context.Background(), confirmationOrder())

	require.NoError(t, err)
	assert.Equal(t, "mail.test:587", gotAddr)
	assert.Equal(t, "shop@storefront.test", gotFrom)
	assert.Equal(t, []string{"maja@example.com"}, gotTo)
	assert.True(t, strings.Contains(string(gotMsg), "ORD20250815120000ab12"))
}

func TestSendOrderConfirmation_NoEmail(t *testing.T) {
	sender := NewSMTPSender(SMTPConfig{Host: "mail.test", Port: 587}, testLogger())
	sender.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}

	order := confirmationOrder()
	order.ShippingAddress.Email = ""

	err := sender.SendOrderConfirmation(context.Background(), order)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSendOrderConfirmation_CancelledContext(t *testing.T) {
	sender := NewSMTPSender(SMTPConfig{Host: "mail.test", Port: 587}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sender.SendOrderConfirmation(ctx, confirmationOrder())

	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogSender(t *testing.T) {
	sender := NewLogSender(testLogger())

	assert.NoError(t, sender.SendOrderConfirmation(context.Background(), confirmationOrder()))
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "0.00", formatCents(0))
	assert.Equal(t, "0.05", formatCents(5))
	assert.Equal(t, "129.99", formatCents(12999))
	assert.Equal(t, "-4.50", formatCents(-450))
}
