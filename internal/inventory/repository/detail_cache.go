package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stockflow/inventory-backend/internal/inventory/domain"
	"github.com/stockflow/inventory-backend/pkg/tenant"
)

// ErrCacheCorrupt is returned when a cached value cannot be decoded.
var ErrCacheCorrupt = errors.New("cached product detail is corrupt")

// DetailCache stores ProductDetail views in Redis under "{country}-{product_id}".
type DetailCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDetailCache creates a detail cache with the given entry TTL
func NewDetailCache(client *redis.Client, ttl time.Duration) *DetailCache {
	return &DetailCache{client: client, ttl: ttl}
}

// Get returns the cached detail, or nil on a miss.
func (c *DetailCache) Get(ctx context.Context, country tenant.Country, productID uuid.UUID) (*domain.ProductDetail, error) {
	val, err := c.client.Get(ctx, DetailKey(country, productID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}

	return DecodeDetail(val, productID)
}

// DecodeDetail decodes a cached entry for productID. Anything that is not that
// product's detail, including valid JSON such as null or {}, is ErrCacheCorrupt.
func DecodeDetail(raw []byte, productID uuid.UUID) (*domain.ProductDetail, error) {
	var detail domain.ProductDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}
	if detail.ID != productID {
		return nil, fmt.Errorf("%w: entry holds product %s", ErrCacheCorrupt, detail.ID)
	}
	return &detail, nil
}

// Set stores the detail with the configured TTL.
func (c *DetailCache) Set(ctx context.Context, country tenant.Country, detail *domain.ProductDetail) error {
	val, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to encode product detail: %w", err)
	}
	if err := c.client.Set(ctx, DetailKey(country, detail.ID), val, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached detail, if any.
func (c *DetailCache) Invalidate(ctx context.Context, country tenant.Country, productID uuid.UUID) error {
	return c.client.Del(ctx, DetailKey(country, productID)).Err()
}

// DetailKey is the cache key of a product's detail view.
func DetailKey(country tenant.Country, productID uuid.UUID) string {
	return string(country) + "-" + productID.String()
}
