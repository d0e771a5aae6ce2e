package domain

import (
	"context"
	"time"
)

// Cache holds the screening path's hot data: customer profiles and the
// rolling velocity counters. It is deliberately not a generic key-value
// store; everything cached has a type. All methods require tenantID for
// strict multi-tenancy isolation.
type Cache interface {
	// GetProfile retrieves a cached customer profile.
	// Returns nil, nil on a miss.
	GetProfile(ctx context.Context, tenantID string, customerID string) (*CustomerProfile, error)

	// SetProfile caches a customer profile with expiration.
	SetProfile(ctx context.Context, tenantID string, profile *CustomerProfile, ttl time.Duration) error

	// InvalidateProfile drops a cached profile, for when enrichment
	// data changes upstream.
	InvalidateProfile(ctx context.Context, tenantID string, customerID string) error

	// IncrementCounter atomically increments a counter and returns the
	// new value. The window starts when the counter is first touched.
	IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
