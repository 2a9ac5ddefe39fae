package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karyatek/storefront/internal/catalog/domain"
)

func newTestCache(t *testing.T) (*ProductCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewProductCache(client, 5*time.Minute), mr
}

func sampleProduct() *domain.Product {
	return &domain.Product{
		ID:             uuid.New(),
		Name:           "Wool Sweater",
		Slug:           "wool-sweater",
		BasePriceCents: 4999,
		Active:         true,
		Variants: []domain.Variant{
			{ID: uuid.New(), SKU: "SWTR-M-GRY", Size: "M", Color: "Grey", Stock: 10},
		},
	}
}

func TestProductCache_MissThenHit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	p := sampleProduct()

	_, err := c.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, p))

	byID, err := c.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, byID.Name)
	assert.Len(t, byID.Variants, 1)

	bySlug, err := c.GetBySlug(ctx, p.Slug)
	require.NoError(t, err)
	assert.Equal(t, p.ID, bySlug.ID)
}

func TestProductCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	p := sampleProduct()

	require.NoError(t, c.Set(ctx, p))
	require.NoError(t, c.Invalidate(ctx, p.ID, p.Slug))

	_, err := c.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, ErrMiss)
	_, err = c.GetBySlug(ctx, p.Slug)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestProductCache_EntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	p := sampleProduct()

	require.NoError(t, c.Set(ctx, p))
	mr.FastForward(6 * time.Minute)

	_, err := c.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, ErrMiss)
}
