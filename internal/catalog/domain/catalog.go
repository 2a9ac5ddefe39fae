package domain

import (
	"time"

	"github.com/google/uuid"
)

// Category groups products for browsing.
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Product is a sellable item. The purchasable unit is always a Variant;
// BasePriceCents is the starting price that variant deltas apply to.
type Product struct {
	ID             uuid.UUID  `json:"id"`
	CategoryID     *uuid.UUID `json:"category_id,omitempty"`
	Name           string     `json:"name"`
	Slug           string     `json:"slug"`
	Description    string     `json:"description,omitempty"`
	BasePriceCents int64      `json:"base_price_cents"`
	Active         bool       `json:"active"`
	Variants       []Variant  `json:"variants,omitempty"`
	Images         []Image    `json:"images,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Variant is a purchasable configuration of a product with its own SKU,
// stock counter, and price delta.
type Variant struct {
	ID              uuid.UUID `json:"id"`
	ProductID       uuid.UUID `json:"product_id"`
	SKU             string    `json:"sku"`
	Color           string    `json:"color,omitempty"`
	Size            string    `json:"size,omitempty"`
	PriceDeltaCents int64     `json:"price_delta_cents"`
	Stock           int       `json:"stock"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Image links a CDN asset to a product, optionally pinned to one variant.
type Image struct {
	ID        uuid.UUID  `json:"id"`
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	AssetID   uuid.UUID  `json:"asset_id"`
	URL       string     `json:"url"`
	AltText   string     `json:"alt_text,omitempty"`
	Position  int        `json:"position"`
	CreatedAt time.Time  `json:"created_at"`
}

// UnitPriceCents resolves the effective price of a variant given its parent
// product's base price.
func (v *Variant) UnitPriceCents(basePriceCents int64) int64 {
	return basePriceCents + v.PriceDeltaCents
}

// Label returns a short human-readable descriptor, e.g. "Blue / M".
func (v *Variant) Label() string {
	switch {
	case v.Color != "" && v.Size != "":
		return v.Color + " / " + v.Size
	case v.Color != "":
		return v.Color
	case v.Size != "":
		return v.Size
	default:
		return v.SKU
	}
}
