package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupTTL is how long an emitted order stays recorded.
const DedupTTL = 30 * 24 * time.Hour

// RedisDeduper records emitted orders with SETNX.
type RedisDeduper struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisDeduper wraps an existing client.
func NewRedisDeduper(client redis.UniversalClient) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: DedupTTL}
}

// DialRedisDeduper connects to a redis:// or rediss:// URL.
func DialRedisDeduper(redisURL string) (*RedisDeduper, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisDeduper(redis.NewClient(opts)), nil
}

// Key returns the record key for an order.
func Key(site string, orderID int) string {
	return fmt.Sprintf("pixelflow:purchase:%s:%d", site, orderID)
}

// First sets the order's key if absent and reports whether it did.
func (d *RedisDeduper) First(ctx context.Context, site string, orderID int) (bool, error) {
	if d == nil || d.client == nil {
		return false, errors.New("redis client not configured")
	}
	ok, err := d.client.SetNX(ctx, Key(site, orderID), "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("record purchase: %w", err)
	}
	return ok, nil
}

// Close releases the client.
func (d *RedisDeduper) Close() error {
	return d.client.Close()
}
