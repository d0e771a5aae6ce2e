package domain

import (
	"context"
	"fmt"
	"time"
)

// EventKind names a stage of the screening pipeline. Kinds double as
// the final token of the bus subject, so they must not contain the
// characters the subject scheme reserves.
type EventKind string

const (
	// EventTransactionIngested carries a transaction submitted for
	// asynchronous screening, optionally with the caller's own profile
	// and history.
	EventTransactionIngested EventKind = "transaction.ingested"

	// EventScreeningCompleted carries every finished screening.
	EventScreeningCompleted EventKind = "screening.completed"

	// EventAlertRaised carries screenings whose decision is REVIEW or
	// BLOCK. Alert firing is the end of Kestrel's responsibility: case
	// management consumes this kind.
	EventAlertRaised EventKind = "alert.raised"
)

// AllTenants subscribes across every tenant. Publishing requires a
// concrete tenant; only subscriptions may be tenant-wildcarded.
const AllTenants = "~all"

// Event is the typed envelope moved over the bus. Exactly the payload
// fields matching Kind are set: a Transaction (plus optional Profile
// and History) for an ingestion, a Screening for a completion or alert.
type Event struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	Kind       EventKind `json:"kind"`
	TraceID    string    `json:"traceId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`

	Transaction *Transaction     `json:"transaction,omitempty"`
	Profile     *CustomerProfile `json:"profile,omitempty"`
	History     []Transaction    `json:"history,omitempty"`

	Screening *Screening `json:"screening,omitempty"`
}

// Validate checks that the envelope carries the payload its kind
// promises and a concrete tenant.
func (e *Event) Validate() error {
	if e.TenantID == "" || e.TenantID == AllTenants {
		return fmt.Errorf("event requires a concrete tenant, got %q", e.TenantID)
	}
	switch e.Kind {
	case EventTransactionIngested:
		if e.Transaction == nil {
			return fmt.Errorf("%s event requires a transaction", e.Kind)
		}
	case EventScreeningCompleted, EventAlertRaised:
		if e.Screening == nil {
			return fmt.Errorf("%s event requires a screening", e.Kind)
		}
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return nil
}

// EventHandler processes one delivered event. The envelope is shared
// between subscribers and must be treated as read-only.
type EventHandler func(ctx context.Context, ev *Event) error

// EventBus moves screening pipeline events between components.
// Supports Go channels (Community) or NATS (Pro). Subscriptions are
// tenant-scoped; AllTenants receives every tenant's events of a kind.
type EventBus interface {
	// Publish delivers the event to subscribers of its kind for its
	// tenant. The bus assigns ID and OccurredAt when unset.
	Publish(ctx context.Context, ev *Event) error

	// Subscribe registers a handler for one event kind within one
	// tenant, or across all tenants with AllTenants.
	Subscribe(ctx context.Context, tenantID string, kind EventKind, handler EventHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving events.
	Unsubscribe() error

	// Kind returns the subscribed event kind.
	Kind() EventKind
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}
