// Package cache provides caching implementations for Kestrel.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// LRUCache is the in-process Community tier cache. Profiles are stored
// as structs, keyed by (tenant, customer); no serialization happens on
// the screening path. Counters live beside the LRU and are not subject
// to eviction, only to window expiry.
type LRUCache struct {
	mu       sync.Mutex
	maxSize  int
	profiles map[profileKey]*list.Element
	order    *list.List
	counters map[counterKey]*counter
}

type profileKey struct {
	tenant   string
	customer string
}

type counterKey struct {
	tenant string
	name   string
}

type profileEntry struct {
	key       profileKey
	profile   domain.CustomerProfile
	expiresAt time.Time
}

type counter struct {
	count     int64
	expiresAt time.Time
}

// NewLRUCache creates a profile cache holding at most maxSize entries.
func NewLRUCache(maxSize int) *LRUCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &LRUCache{
		maxSize:  maxSize,
		profiles: make(map[profileKey]*list.Element),
		order:    list.New(),
		counters: make(map[counterKey]*counter),
	}
}

// GetProfile returns a copy of the cached profile, or nil, nil on a
// miss or an expired entry.
func (c *LRUCache) GetProfile(ctx context.Context, tenantID string, customerID string) (*domain.CustomerProfile, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.profiles[profileKey{tenantID, customerID}]
	if !ok {
		return nil, nil
	}

	entry := elem.Value.(*profileEntry)
	if time.Now().After(entry.expiresAt) {
		c.evict(elem)
		return nil, nil
	}

	c.order.MoveToFront(elem)
	// Copy out so callers cannot mutate the cached struct.
	profile := entry.profile
	return &profile, nil
}

// SetProfile stores a copy of the profile under its customer ID.
func (c *LRUCache) SetProfile(ctx context.Context, tenantID string, profile *domain.CustomerProfile, ttl time.Duration) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	if profile == nil || profile.ID == "" {
		return fmt.Errorf("profile with customer id is required")
	}

	key := profileKey{tenantID, profile.ID}
	expires := time.Now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.profiles[key]; ok {
		entry := elem.Value.(*profileEntry)
		entry.profile = *profile
		entry.expiresAt = expires
		c.order.MoveToFront(elem)
		return nil
	}

	elem := c.order.PushFront(&profileEntry{key: key, profile: *profile, expiresAt: expires})
	c.profiles[key] = elem

	for c.order.Len() > c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.evict(oldest)
		}
	}
	return nil
}

// InvalidateProfile drops a cached profile.
func (c *LRUCache) InvalidateProfile(ctx context.Context, tenantID string, customerID string) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.profiles[profileKey{tenantID, customerID}]; ok {
		c.evict(elem)
	}
	return nil
}

// IncrementCounter bumps a windowed counter. An expired window starts
// over at 1.
func (c *LRUCache) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}

	ck := counterKey{tenantID, key}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.counters[ck]
	if !ok || now.After(entry.expiresAt) {
		c.counters[ck] = &counter{count: 1, expiresAt: now.Add(window)}
		return 1, nil
	}

	entry.count++
	return entry.count, nil
}

// Ping checks cache health.
func (c *LRUCache) Ping(ctx context.Context) error {
	return nil
}

// Close discards all entries.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles = make(map[profileKey]*list.Element)
	c.order = list.New()
	c.counters = make(map[counterKey]*counter)
	return nil
}

// Stats returns current size and capacity of the profile store.
func (c *LRUCache) Stats() (size int, capacity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len(), c.maxSize
}

func (c *LRUCache) evict(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.profiles, elem.Value.(*profileEntry).key)
}
