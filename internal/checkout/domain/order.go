package domain

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Order lifecycle statuses. Orders are immutable after payment completes
// except for these transitions, which belong to an administrative path.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Payment statuses.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// orderStatusFlow holds the allowed forward transitions for each status.
// Cancellation is only possible before the order ships.
var orderStatusFlow = map[string][]string{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// IsValidOrderStatus reports whether status is a known lifecycle status.
func IsValidOrderStatus(status string) bool {
	_, ok := orderStatusFlow[status]
	return ok
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range orderStatusFlow[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Accepted payment methods.
const (
	PaymentMethodCreditCard = "credit_card"
	PaymentMethodPayPal     = "paypal"
	PaymentMethodStripe     = "stripe"
)

// IsValidPaymentMethod reports whether method is one of the accepted values.
func IsValidPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodCreditCard, PaymentMethodPayPal, PaymentMethodStripe:
		return true
	default:
		return false
	}
}

// Pricing constants. Prices are integer cents throughout; the tax rate is
// applied with round-half-up so totals stay exact.
const (
	TaxRatePercent             = 25
	FreeShippingThresholdCents = 10000
	FlatShippingFeeCents       = 999
)

// Address is the contact and delivery information captured on an order.
// It is stored as a JSON document, frozen at purchase time.
type Address struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

// Order is an immutable record of a completed checkout.
type Order struct {
	ID              uuid.UUID   `json:"id"`
	OrderNumber     string      `json:"order_number"`
	Status          string      `json:"status"`
	PaymentStatus   string      `json:"payment_status"`
	PaymentMethod   string      `json:"payment_method"`
	TransactionRef  string      `json:"transaction_ref,omitempty"`
	ShippingAddress Address     `json:"shipping_address"`
	BillingAddress  Address     `json:"billing_address"`
	Notes           string      `json:"notes,omitempty"`
	SubtotalCents   int64       `json:"subtotal_cents"`
	TaxCents        int64       `json:"tax_cents"`
	ShippingCents   int64       `json:"shipping_cents"`
	TotalCents      int64       `json:"total_cents"`
	Lines           []OrderLine `json:"lines"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// OrderLine captures one purchased variant. Snapshot freezes the product and
// variant as they existed at purchase time so later catalog edits never
// change a placed order.
type OrderLine struct {
	ID             uuid.UUID       `json:"id"`
	OrderID        uuid.UUID       `json:"order_id"`
	VariantID      uuid.UUID       `json:"variant_id"`
	ProductName    string          `json:"product_name"`
	VariantLabel   string          `json:"variant_label,omitempty"`
	SKU            string          `json:"sku"`
	UnitPriceCents int64           `json:"unit_price_cents"`
	Quantity       int             `json:"quantity"`
	SubtotalCents  int64           `json:"subtotal_cents"`
	Snapshot       json.RawMessage `json:"snapshot,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ComputeTotals recomputes all four totals from the lines. Totals are always
// recomputed in full, never incrementally patched.
func (o *Order) ComputeTotals() {
	var subtotal int64
	for i := range o.Lines {
		o.Lines[i].SubtotalCents = o.Lines[i].UnitPriceCents * int64(o.Lines[i].Quantity)
		subtotal += o.Lines[i].SubtotalCents
	}

	o.SubtotalCents = subtotal
	o.TaxCents = TaxCents(subtotal)
	o.ShippingCents = ShippingCents(subtotal)
	o.TotalCents = o.SubtotalCents + o.TaxCents + o.ShippingCents
}

// TaxCents applies the flat regional tax rate with round-half-up.
func TaxCents(subtotalCents int64) int64 {
	return (subtotalCents*TaxRatePercent + 50) / 100
}

// ShippingCents returns the flat fee, waived above the free-shipping
// threshold.
func ShippingCents(subtotalCents int64) int64 {
	if subtotalCents > FreeShippingThresholdCents {
		return 0
	}
	return FlatShippingFeeCents
}

// TotalsConsistent reports whether total equals the sum of its parts.
func (o *Order) TotalsConsistent() bool {
	return o.TotalCents == o.SubtotalCents+o.TaxCents+o.ShippingCents
}

// NewOrderNumber generates a human-readable order number: a fixed prefix,
// the full UTC timestamp, and a short random suffix. Uniqueness is enforced
// by the database constraint, with collisions accepted as negligible.
func NewOrderNumber(now time.Time) string {
	suffix := make([]byte, 2)
	_, _ = rand.Read(suffix)
	return "ORD" + now.UTC().Format("20060102150405") + hex.EncodeToString(suffix)
}

// NewTransactionRef generates a payment transaction reference.
func NewTransactionRef() string {
	ref := make([]byte, 6)
	_, _ = rand.Read(ref)
	return "TXN-" + hex.EncodeToString(ref)
}

// Snapshot is the frozen product and variant state embedded in an order line.
type Snapshot struct {
	Product SnapshotProduct `json:"product"`
	Variant SnapshotVariant `json:"variant"`
}

// SnapshotProduct is the product portion of a line snapshot.
type SnapshotProduct struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	BasePriceCents int64     `json:"base_price_cents"`
}

// SnapshotVariant is the variant portion of a line snapshot.
type SnapshotVariant struct {
	ID              uuid.UUID `json:"id"`
	SKU             string    `json:"sku"`
	Color           string    `json:"color,omitempty"`
	Size            string    `json:"size,omitempty"`
	PriceDeltaCents int64     `json:"price_delta_cents"`
	StockAtPurchase int       `json:"stock_at_purchase"`
}
