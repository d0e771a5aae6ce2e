package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Key layout: kestrel:<tenant>:profile:<customer> for profiles and
// kestrel:<tenant>:counter:<name> for windowed counters.
const keyRoot = "kestrel"

// incrWindowed increments a counter and arms its expiry only on the
// first touch, atomically, so concurrent increments cannot extend the
// window.
var incrWindowed = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return current
`)

// RedisCache is the Pro tier cache, shared across instances. Profiles
// are stored as JSON documents.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// GetProfile retrieves a cached customer profile. Returns nil, nil on
// a miss.
func (c *RedisCache) GetProfile(ctx context.Context, tenantID string, customerID string) (*domain.CustomerProfile, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	data, err := c.client.Get(ctx, profileCacheKey(tenantID, customerID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var profile domain.CustomerProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("corrupt cached profile for %s: %w", customerID, err)
	}
	return &profile, nil
}

// SetProfile caches a customer profile with TTL.
func (c *RedisCache) SetProfile(ctx context.Context, tenantID string, profile *domain.CustomerProfile, ttl time.Duration) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	if profile == nil || profile.ID == "" {
		return fmt.Errorf("profile with customer id is required")
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, profileCacheKey(tenantID, profile.ID), data, ttl).Err()
}

// InvalidateProfile drops a cached profile.
func (c *RedisCache) InvalidateProfile(ctx context.Context, tenantID string, customerID string) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	return c.client.Del(ctx, profileCacheKey(tenantID, customerID)).Err()
}

// IncrementCounter bumps a windowed counter atomically across all
// instances sharing this Redis.
func (c *RedisCache) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}

	fullKey := fmt.Sprintf("%s:%s:counter:%s", keyRoot, tenantID, key)
	return incrWindowed.Run(ctx, c.client, []string{fullKey}, window.Milliseconds()).Int64()
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func profileCacheKey(tenantID, customerID string) string {
	return fmt.Sprintf("%s:%s:profile:%s", keyRoot, tenantID, customerID)
}
