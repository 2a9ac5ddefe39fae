package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeTotals(t *testing.T) {
	o := &Order{
		Lines: []OrderLine{
			{UnitPriceCents: 1000, Quantity: 2},
			{UnitPriceCents: 2500, Quantity: 1},
		},
	}

	o.ComputeTotals()

	assert.Equal(t, int64(4500), o.SubtotalCents)
	assert.Equal(t, int64(1125), o.TaxCents)
	assert.Equal(t, int64(999), o.ShippingCents)
	assert.Equal(t, int64(6624), o.TotalCents)
	assert.True(t, o.TotalsConsistent())
}

func TestShippingCents_WaivedAboveThreshold(t *testing.T) {
	assert.Equal(t, int64(999), ShippingCents(5000))
	assert.Equal(t, int64(999), ShippingCents(FreeShippingThresholdCents))
	assert.Equal(t, int64(0), ShippingCents(15000))
}

func TestTaxCents_RoundsHalfUp(t *testing.T) {
	// 25% of 101 is 25.25, which rounds down to 25.
	assert.Equal(t, int64(25), TaxCents(101))
	// 25% of 102 is 25.5, which rounds up to 26.
	assert.Equal(t, int64(26), TaxCents(102))
	assert.Equal(t, int64(0), TaxCents(0))
}

func TestIsValidPaymentMethod(t *testing.T) {
	assert.True(t, IsValidPaymentMethod(PaymentMethodCreditCard))
	assert.True(t, IsValidPaymentMethod(PaymentMethodPayPal))
	assert.True(t, IsValidPaymentMethod(PaymentMethodStripe))
	assert.False(t, IsValidPaymentMethod("bitcoin"))
	assert.False(t, IsValidPaymentMethod(""))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusProcessing))
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusCancelled))
	assert.True(t, CanTransition(OrderStatusProcessing, OrderStatusShipped))
	assert.True(t, CanTransition(OrderStatusProcessing, OrderStatusCancelled))
	assert.True(t, CanTransition(OrderStatusShipped, OrderStatusDelivered))

	assert.False(t, CanTransition(OrderStatusPending, OrderStatusDelivered))
	assert.False(t, CanTransition(OrderStatusShipped, OrderStatusCancelled))
	assert.False(t, CanTransition(OrderStatusDelivered, OrderStatusPending))
	assert.False(t, CanTransition(OrderStatusCancelled, OrderStatusProcessing))
}

func TestIsValidOrderStatus(t *testing.T) {
	assert.True(t, IsValidOrderStatus(OrderStatusPending))
	assert.True(t, IsValidOrderStatus(OrderStatusDelivered))
	assert.False(t, IsValidOrderStatus("refunded"))
	assert.False(t, IsValidOrderStatus(""))
}

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	n := NewOrderNumber(now)

	assert.True(t, strings.HasPrefix(n, "ORD20250314150926"))
	assert.Len(t, n, len("ORD20250314150926")+4)
}

func TestNewTransactionRef(t *testing.T) {
	ref := NewTransactionRef()
	assert.True(t, strings.HasPrefix(ref, "TXN-"))
	assert.NotEqual(t, ref, NewTransactionRef())
}
