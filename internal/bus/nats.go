package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Subject layout: kestrel.<tenant>.<kind>. The kind's dots put the
// tenant in a fixed token position, so an all-tenant subscription is a
// single-token wildcard.
const subjectRoot = "kestrel"

// Headers carried on every published message, so operators can filter
// and trace without decoding the body.
const (
	headerTenant = "Kestrel-Tenant"
	headerTrace  = "Kestrel-Trace"
	headerKind   = "Kestrel-Kind"
)

// NATSBus is the Pro tier bus. Reconnection is handled by the client
// with a buffered outbox, so short broker outages do not lose
// screenings already accepted.
type NATSBus struct {
	mu   sync.Mutex
	conn *nats.Conn
	subs map[*natsSub]struct{}
}

type natsSub struct {
	bus  *NATSBus
	kind domain.EventKind
	sub  *nats.Subscription
}

// NewNATSBus connects to NATS with retry and resilience options.
func NewNATSBus(cfg domain.EventBusConfig) (*NATSBus, error) {
	if cfg.NATSUrl == "" {
		cfg.NATSUrl = nats.DefaultURL
	}
	if cfg.NATSMaxReconnects == 0 {
		cfg.NATSMaxReconnects = 10
	}
	if cfg.NATSReconnectWait == 0 {
		cfg.NATSReconnectWait = 5
	}

	conn, err := connect(cfg)
	if err != nil {
		return nil, err
	}

	slog.Info("NATS connected",
		"url", conn.ConnectedUrl(),
		"server_id", conn.ConnectedServerId(),
	)

	return &NATSBus{
		conn: conn,
		subs: make(map[*natsSub]struct{}),
	}, nil
}

func connect(cfg domain.EventBusConfig) (*nats.Conn, error) {
	wait := time.Duration(cfg.NATSReconnectWait) * time.Second

	opts := []nats.Option{
		nats.MaxReconnects(cfg.NATSMaxReconnects),
		nats.ReconnectWait(wait),
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err, "will_reconnect", !nc.IsClosed())
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			slog.Error("NATS error", "error", err, "subject", sub.Subject)
		}),
	}
	if cfg.NATSToken != "" {
		opts = append(opts, nats.Token(cfg.NATSToken))
	}

	var conn *nats.Conn
	var err error
	for attempt := 1; attempt <= cfg.NATSMaxReconnects; attempt++ {
		conn, err = nats.Connect(cfg.NATSUrl, opts...)
		if err == nil {
			return conn, nil
		}
		slog.Warn("NATS connection attempt failed",
			"attempt", attempt,
			"max_attempts", cfg.NATSMaxReconnects,
			"error", err,
		)
		time.Sleep(wait)
	}
	return nil, fmt.Errorf("failed to connect to NATS after %d attempts: %w", cfg.NATSMaxReconnects, err)
}

// Publish sends the event to its tenant/kind subject with envelope
// metadata mirrored into headers.
func (b *NATSBus) Publish(ctx context.Context, ev *domain.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	stamp(ev)

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &nats.Msg{
		Subject: subjectFor(ev.TenantID, ev.Kind),
		Data:    data,
		Header: nats.Header{
			headerTenant: []string{ev.TenantID},
			headerKind:   []string{string(ev.Kind)},
		},
	}
	if ev.TraceID != "" {
		msg.Header.Set(headerTrace, ev.TraceID)
	}
	return b.conn.PublishMsg(msg)
}

// Subscribe registers a handler for one event kind. tenantID may be
// domain.AllTenants, which subscribes with a tenant-token wildcard.
func (b *NATSBus) Subscribe(ctx context.Context, tenantID string, kind domain.EventKind, handler domain.EventHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	subject := subjectFor(tenantID, kind)
	natsSubscription, err := b.conn.Subscribe(subject, func(m *nats.Msg) {
		var ev domain.Event
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			slog.Error("failed to decode event", "subject", m.Subject, "error", err)
			return
		}
		// A subject can only carry its own tenant's events, but the
		// envelope is the source of truth for isolation.
		if tenantID != domain.AllTenants && ev.TenantID != tenantID {
			slog.Error("event tenant does not match subscription",
				"subject", m.Subject,
				"event_tenant", ev.TenantID,
			)
			return
		}
		if err := handler(ctx, &ev); err != nil {
			slog.Error("event handler failed",
				"kind", ev.Kind,
				"tenant_id", ev.TenantID,
				"event_id", ev.ID,
				"error", err,
			)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	sub := &natsSub{bus: b, kind: kind, sub: natsSubscription}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub, nil
}

// Ping checks NATS connectivity.
func (b *NATSBus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("NATS not connected")
	}
	return b.conn.FlushWithContext(ctx)
}

// Close drains subscriptions and closes the connection.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		_ = sub.sub.Unsubscribe()
	}
	b.subs = make(map[*natsSub]struct{})

	b.conn.Close()
	return nil
}

// Stats returns NATS connection statistics.
func (b *NATSBus) Stats() nats.Statistics {
	return b.conn.Stats()
}

func subjectFor(tenantID string, kind domain.EventKind) string {
	tenant := tenantID
	if tenant == domain.AllTenants {
		tenant = "*"
	}
	return subjectRoot + "." + tenant + "." + string(kind)
}

// Unsubscribe removes the subscription.
func (s *natsSub) Unsubscribe() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()
	return s.sub.Unsubscribe()
}

// Kind returns the subscribed event kind.
func (s *natsSub) Kind() domain.EventKind {
	return s.kind
}
