// Package bus provides event bus implementations for Kestrel.
package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ErrClosed is returned by all operations after Close.
var ErrClosed = fmt.Errorf("event bus is closed")

// ChannelBus is the in-process Community tier bus. Delivery is
// per-subscriber buffered and never blocks the publisher: a subscriber
// that cannot keep up loses events, counted in Dropped.
type ChannelBus struct {
	mu     sync.RWMutex
	buffer int
	subs   map[subKey][]*channelSub
	closed bool

	dropped atomic.Int64
}

// Subscriptions are keyed by (tenant, kind). Wildcard subscriptions
// live under domain.AllTenants and receive every tenant's events.
type subKey struct {
	tenant string
	kind   domain.EventKind
}

type channelSub struct {
	bus     *ChannelBus
	key     subKey
	handler domain.EventHandler
	events  chan *domain.Event
	done    chan struct{}
	once    sync.Once
}

// NewChannelBus creates an in-process bus with the given per-subscriber
// buffer size.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelBus{
		buffer: bufferSize,
		subs:   make(map[subKey][]*channelSub),
	}
}

// Publish fans the event out to the tenant's subscribers of its kind,
// plus any all-tenant subscribers.
func (b *ChannelBus) Publish(ctx context.Context, ev *domain.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	stamp(ev)

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	targets := make([]*channelSub, 0, 4)
	targets = append(targets, b.subs[subKey{ev.TenantID, ev.Kind}]...)
	targets = append(targets, b.subs[subKey{domain.AllTenants, ev.Kind}]...)
	b.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.events <- ev:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe registers a handler for one event kind. tenantID may be
// domain.AllTenants to receive the kind across every tenant.
func (b *ChannelBus) Subscribe(ctx context.Context, tenantID string, kind domain.EventKind, handler domain.EventHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	sub := &channelSub{
		bus:     b,
		key:     subKey{tenantID, kind},
		handler: handler,
		events:  make(chan *domain.Event, b.buffer),
		done:    make(chan struct{}),
	}
	b.subs[sub.key] = append(b.subs[sub.key], sub)

	go sub.run(ctx)
	return sub, nil
}

// Ping checks bus health.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close stops all subscriptions. Buffered events are discarded.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.stop()
		}
	}
	b.subs = make(map[subKey][]*channelSub)
	return nil
}

// Dropped reports how many events were lost to full subscriber buffers
// since the bus was created.
func (b *ChannelBus) Dropped() int64 {
	return b.dropped.Load()
}

func (b *ChannelBus) remove(sub *channelSub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[sub.key]
	for i, s := range subs {
		if s == sub {
			b.subs[sub.key] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (s *channelSub) run(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case ev := <-s.events:
			if ev != nil {
				_ = s.handler(ctx, ev)
			}
		}
	}
}

func (s *channelSub) stop() {
	s.once.Do(func() { close(s.done) })
}

// Unsubscribe detaches the subscription from the bus and stops its
// delivery goroutine.
func (s *channelSub) Unsubscribe() error {
	s.bus.remove(s)
	s.stop()
	return nil
}

// Kind returns the subscribed event kind.
func (s *channelSub) Kind() domain.EventKind {
	return s.key.kind
}

// stamp fills in the envelope fields the bus owns.
func stamp(ev *domain.Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
}
