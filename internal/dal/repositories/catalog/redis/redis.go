package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/icatalog"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/product"
)

// CachedCatalog is a read-through redis cache in front of another catalog.
// Redis failures degrade to reading the underlying catalog.
type CachedCatalog struct {
	next    icatalog.ICatalog
	client  *redis.Client
	baseTTL time.Duration
}

func NewCachedCatalog(next icatalog.ICatalog, client *redis.Client, ttl time.Duration) *CachedCatalog {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &CachedCatalog{
		next:    next,
		client:  client,
		baseTTL: ttl,
	}
}

func (c *CachedCatalog) GetProduct(ctx context.Context, id int64) (*product.Product, error) {
	key := cacheKey(id)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p product.Product
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
		slog.Warn("Dropping unreadable cached product", "product_id", id)
		c.client.Del(ctx, key)
	case !errors.Is(err, redis.Nil):
		slog.Warn("Product cache read failed", "product_id", id, "error", err)
	}

	p, err := c.next.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.set(ctx, key, p); err != nil {
		slog.Warn("Product cache write failed", "product_id", id, "error", err)
	}

	return p, nil
}

// UpsertProduct writes through and evicts the cached entry.
func (c *CachedCatalog) UpsertProduct(ctx context.Context, p product.Product) error {
	if err := c.next.UpsertProduct(ctx, p); err != nil {
		return err
	}
	if err := c.client.Del(ctx, cacheKey(p.ID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

func (c *CachedCatalog) set(ctx context.Context, key string, p *product.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal product failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(60)) * time.Second
	if err := c.client.Set(ctx, key, data, c.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func cacheKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}
