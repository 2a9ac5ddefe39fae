package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/karyatek/storefront/internal/catalog/domain"
)

const (
	idKeyPrefix   = "product:id:"
	slugKeyPrefix = "product:slug:"
)

// ErrMiss is returned when the requested product is not cached.
var ErrMiss = errors.New("product cache miss")

// ProductCache is a Redis cache-aside layer for hot product reads. Entries
// are written on read-through and invalidated on any product write.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProductCache creates a product cache with the given entry TTL.
func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{client: client, ttl: ttl}
}

// GetByID returns the cached product or ErrMiss.
func (c *ProductCache) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return c.get(ctx, idKeyPrefix+id.String())
}

// GetBySlug returns the cached product or ErrMiss.
func (c *ProductCache) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return c.get(ctx, slugKeyPrefix+slug)
}

func (c *ProductCache) get(ctx context.Context, key string) (*domain.Product, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("redis get product: %w", err)
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal cached product: %w", err)
	}
	return &p, nil
}

// Set caches the product under both its id and slug keys.
func (c *ProductCache) Set(ctx context.Context, p *domain.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, idKeyPrefix+p.ID.String(), data, c.ttl)
	pipe.Set(ctx, slugKeyPrefix+p.Slug, data, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set product: %w", err)
	}
	return nil
}

// Invalidate drops both cache keys for the product. Called on every write
// that can change what browse endpoints return, including stock decrements.
func (c *ProductCache) Invalidate(ctx context.Context, id uuid.UUID, slug string) error {
	keys := []string{idKeyPrefix + id.String()}
	if slug != "" {
		keys = append(keys, slugKeyPrefix+slug)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del product: %w", err)
	}
	return nil
}
