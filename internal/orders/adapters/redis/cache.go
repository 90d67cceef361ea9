package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
)

const keyOrder = "order:%s"

// Cache stores serialized orders under order:{id} with a fixed TTL.
type Cache struct {
	rdb goredis.UniversalClient
	ttl time.Duration
}

func NewClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

func NewCache(rdb goredis.UniversalClient, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context, id string) (*domain.Order, error) {
	raw, err := c.rdb.Get(ctx, fmt.Sprintf(keyOrder, id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached order: %w", err)
	}

	var order domain.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("decode cached order: %w", err)
	}
	return &order, nil
}

func (c *Cache) Set(ctx context.Context, order domain.Order) error {
	raw, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	if err := c.rdb.Set(ctx, fmt.Sprintf(keyOrder, order.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache order: %w", err)
	}
	return nil
}

func (c *Cache) Invalidate(ctx context.Context, id string) error {
	if err := c.rdb.Del(ctx, fmt.Sprintf(keyOrder, id)).Err(); err != nil {
		return fmt.Errorf("invalidate cached order: %w", err)
	}
	return nil
}

// Ping reports whether redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
