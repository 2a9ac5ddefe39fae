package domain

import (
	"time"

	"github.com/google/uuid"
)

// Cart holds the lines a shopper intends to buy. A cart belongs to exactly
// one owner, either an authenticated user or a guest session, and is created
// lazily on first interaction. Checkout empties it rather than deleting it.
type Cart struct {
	ID            uuid.UUID `json:"id"`
	Lines         []Line    `json:"lines"`
	SubtotalCents int64     `json:"subtotal_cents"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Line is one variant in a cart. Pricing fields are projections from the
// catalog at read time, not stored values.
type Line struct {
	ID             uuid.UUID `json:"id"`
	VariantID      uuid.UUID `json:"variant_id"`
	Quantity       int       `json:"quantity"`
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	ProductSlug    string    `json:"product_slug"`
	SKU            string    `json:"sku"`
	Color          string    `json:"color,omitempty"`
	Size           string    `json:"size,omitempty"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	SubtotalCents  int64     `json:"subtotal_cents"`
	StockLeft      int       `json:"stock_left"`
}

// ComputeSubtotal recalculates line subtotals and the cart subtotal.
func (c *Cart) ComputeSubtotal() {
	var total int64
	for i := range c.Lines {
		c.Lines[i].SubtotalCents = c.Lines[i].UnitPriceCents * int64(c.Lines[i].Quantity)
		total += c.Lines[i].SubtotalCents
	}
	c.SubtotalCents = total
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}
