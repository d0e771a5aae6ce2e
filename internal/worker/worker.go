// Package worker provides async screening from the EventBus.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
	"github.com/opensource-finance/kestrel/internal/velocity"
)

// Worker screens transactions asynchronously from the EventBus. It
// subscribes to ingestion events, runs each through the screening
// engine, persists the result, and publishes the outcome downstream.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	cache    domain.Cache
	engine   *engine.Engine
	velocity *velocity.Service

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process. Empty means one
	// all-tenant subscription.
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, eng *engine.Engine, vel *velocity.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		cache:    cache,
		engine:   eng,
		velocity: vel,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to ingestion events for the configured tenants, or
// across all tenants when none are named.
func (w *Worker) Start(cfg Config) error {
	tenants := cfg.TenantIDs
	if len(tenants) == 0 {
		tenants = []string{domain.AllTenants}
	}

	for _, tenantID := range tenants {
		sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.EventTransactionIngested, w.handleIngested)
		if err != nil {
			slog.Error("failed to subscribe worker",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	if len(w.subscriptions) == 0 {
		return fmt.Errorf("no worker subscriptions established")
	}

	slog.Info("workers started", "subscription_count", len(w.subscriptions))
	return nil
}

func (w *Worker) handleIngested(ctx context.Context, ev *domain.Event) error {
	start := time.Now()

	if ev.Transaction == nil {
		slog.Error("ingestion event without transaction", "event_id", ev.ID)
		return fmt.Errorf("ingestion event %s has no transaction", ev.ID)
	}

	tenantID := ev.TenantID
	traceID := ev.TraceID
	if traceID == "" {
		traceID = ev.ID
	}

	tx := *ev.Transaction
	tx.TenantID = tenantID

	slog.Debug("screening transaction",
		"tx_id", tx.ID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	// Resolve the customer profile. A lookup failure is fail-open but
	// recorded as a degraded signal on the result.
	var degraded []string
	profile := ev.Profile
	if profile == nil && w.cache != nil {
		cached, err := w.cache.GetProfile(ctx, tenantID, tx.CustomerID)
		if err != nil {
			slog.Warn("profile lookup failed",
				"customer_id", tx.CustomerID,
				"error", err,
			)
			degraded = append(degraded, domain.SignalProfile)
		} else if cached != nil {
			profile = cached
		}
	}
	if profile == nil {
		profile = &domain.CustomerProfile{ID: tx.CustomerID}
	}

	// Resolve recent history for structuring and velocity. Same rule:
	// screen without it, but say so.
	history := domain.RecentHistory(ev.History)
	if history == nil {
		if w.velocity == nil {
			degraded = append(degraded, domain.SignalHistory)
		} else {
			fetched, err := w.velocity.RecentHistory(ctx, tenantID, tx.CustomerID, w.engine.HistoryWindow(), tx.Timestamp)
			if err != nil {
				slog.Warn("history lookup failed",
					"customer_id", tx.CustomerID,
					"error", err,
				)
				degraded = append(degraded, domain.SignalHistory)
			} else {
				history = fetched
			}
		}
	}

	screening, err := w.engine.Screen(ctx, &engine.Input{
		Transaction: tx,
		Profile:     *profile,
		History:     history,
		TraceID:     traceID,
	})
	if err != nil {
		slog.Error("screening failed",
			"tx_id", tx.ID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}
	screening.Metadata.Degraded = degraded

	if w.repo != nil {
		if err := w.repo.SaveTransaction(ctx, tenantID, &tx); err != nil {
			slog.Error("failed to save transaction",
				"tx_id", tx.ID,
				"error", err,
			)
		}
		if err := w.repo.SaveScreening(ctx, tenantID, screening); err != nil {
			slog.Error("failed to save screening",
				"tx_id", tx.ID,
				"error", err,
			)
		}
	}

	if w.velocity != nil {
		if _, err := w.velocity.RecordScreening(ctx, tenantID, tx.CustomerID, w.engine.HistoryWindow()); err != nil {
			slog.Warn("failed to record screening counter",
				"customer_id", tx.CustomerID,
				"error", err,
			)
		}
	}

	w.publish(ctx, tenantID, traceID, screening)

	slog.Info("transaction screened",
		"tx_id", tx.ID,
		"tenant_id", tenantID,
		"tier", screening.Alert.Tier,
		"decision", screening.Alert.Decision,
		"score", screening.CompositeScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// publish emits the completion event, and an alert event when the
// decision warrants one.
func (w *Worker) publish(ctx context.Context, tenantID, traceID string, screening *domain.Screening) {
	completed := &domain.Event{
		TenantID:  tenantID,
		Kind:      domain.EventScreeningCompleted,
		TraceID:   traceID,
		Screening: screening,
	}
	if err := w.bus.Publish(ctx, completed); err != nil {
		slog.Error("failed to publish screening result",
			"tx_id", screening.TxID,
			"error", err,
		)
	}

	if engine.ShouldAlert(screening) {
		alert := &domain.Event{
			TenantID:  tenantID,
			Kind:      domain.EventAlertRaised,
			TraceID:   traceID,
			Screening: screening,
		}
		if err := w.bus.Publish(ctx, alert); err != nil {
			slog.Error("failed to publish alert",
				"tx_id", screening.TxID,
				"error", err,
			)
		}
	}
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"kind", sub.Kind(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Kinds             []string `json:"kinds"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	kinds := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		kinds[i] = string(sub.Kind())
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Kinds:             kinds,
	}
}
