// Package integration provides end-to-end tests for the Kestrel risk
// screening engine.
//
// These tests assemble the full Community-tier stack in-process:
//
//	HTTP → screening engine → SQLite repository → channel bus
//
// and verify the complete pipeline: scoring, structuring detection,
// decisioning, persistence, and retrieval.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/ruleset"
	"github.com/opensource-finance/kestrel/internal/velocity"
)

type testStack struct {
	server *api.Server
	repo   domain.Repository
	bus    *bus.ChannelBus
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	repoPath := filepath.Join(t.TempDir(), "kestrel-test.db")
	repo, err := newRepository(repoPath)
	if err != nil {
		t.Fatalf("repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	c := cache.NewLRUCache(1000)
	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	store, err := ruleset.NewStore(domain.DefaultRuleset())
	if err != nil {
		t.Fatalf("ruleset store: %v", err)
	}

	eng := engine.New(store, "integration-test")
	vel := velocity.NewService(repo, c)

	cfg := domain.ServerConfig{Host: "localhost", Port: 8090, ReadTimeout: 30, WriteTimeout: 30}
	server := api.NewServer(cfg, repo, c, eventBus, eng, store, vel, "integration-test")

	return &testStack{server: server, repo: repo, bus: eventBus}
}

func newRepository(path string) (domain.Repository, error) {
	return repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: path})
}

func (s *testStack) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "test-tenant")
	rr := httptest.NewRecorder()
	s.server.Router().ServeHTTP(rr, req)
	return rr
}

func screenRequest(txID, customerID string, amount float64, ts time.Time) map[string]interface{} {
	return map[string]interface{}{
		"transaction": map[string]interface{}{
			"id":         txID,
			"customerId": customerID,
			"amount":     amount,
			"currency":   "USD",
			"timestamp":  ts.Format(time.RFC3339),
		},
	}
}

func TestScreenAndRetrieve(t *testing.T) {
	stack := newTestStack(t)
	now := time.Now().UTC().Truncate(time.Second)

	rr := stack.do(t, http.MethodPost, "/screen", screenRequest("tx-e2e-1", "cust-e2e", 500, now))
	if rr.Code != http.StatusOK {
		t.Fatalf("screen: status %d: %s", rr.Code, rr.Body.String())
	}

	var screening domain.Screening
	if err := json.Unmarshal(rr.Body.Bytes(), &screening); err != nil {
		t.Fatalf("parse screening: %v", err)
	}
	if screening.Alert.Decision != domain.DecisionApprove {
		t.Errorf("clean transaction should be approved, got %s", screening.Alert.Decision)
	}

	// The screening must be retrievable by ID
	rr = stack.do(t, http.MethodGet, "/screenings/"+screening.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get screening: status %d", rr.Code)
	}
	var stored domain.Screening
	if err := json.Unmarshal(rr.Body.Bytes(), &stored); err != nil {
		t.Fatalf("parse stored screening: %v", err)
	}
	if stored.TxID != "tx-e2e-1" || stored.CompositeScore != screening.CompositeScore {
		t.Errorf("stored screening differs: %+v", stored)
	}

	// So must the transaction
	rr = stack.do(t, http.MethodGet, "/transactions/tx-e2e-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get transaction: status %d", rr.Code)
	}
}

func TestStructuringDetectedOverPersistedHistory(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	// Two prior cash deposits just under the reporting threshold,
	// persisted in the repository rather than sent with the request.
	for i, prior := range []struct {
		id     string
		amount float64
		age    time.Duration
	}{
		{"tx-prior-1", 9200, 24 * time.Hour},
		{"tx-prior-2", 9000, 48 * time.Hour},
	} {
		tx := &domain.Transaction{
			ID:         prior.id,
			CustomerID: "cust-structuring",
			Amount:     prior.amount,
			Currency:   "USD",
			Timestamp:  now.Add(-prior.age),
			Cash:       true,
		}
		if err := stack.repo.SaveTransaction(ctx, "test-tenant", tx); err != nil {
			t.Fatalf("save prior %d: %v", i, err)
		}
	}

	// Current deposit also in the structuring band
	body := map[string]interface{}{
		"transaction": map[string]interface{}{
			"id":         "tx-structuring",
			"customerId": "cust-structuring",
			"amount":     9500.0,
			"currency":   "USD",
			"timestamp":  now.Format(time.RFC3339),
			"cash":       true,
		},
	}

	rr := stack.do(t, http.MethodPost, "/screen", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("screen: status %d: %s", rr.Code, rr.Body.String())
	}

	var screening domain.Screening
	if err := json.Unmarshal(rr.Body.Bytes(), &screening); err != nil {
		t.Fatalf("parse screening: %v", err)
	}

	if !screening.Structuring.Detected {
		t.Fatalf("expected structuring to be detected: %+v", screening.Structuring)
	}
	if screening.Structuring.Occurrences != 3 {
		t.Errorf("occurrences = %d, want 3", screening.Structuring.Occurrences)
	}
	if screening.Structuring.TotalAmount != 27700 {
		t.Errorf("total = %v, want 27700", screening.Structuring.TotalAmount)
	}
}

func TestAlertPublishedOnBlockingScreen(t *testing.T) {
	stack := newTestStack(t)
	now := time.Now().UTC()

	alertCh := make(chan *domain.Event, 1)
	_, err := stack.bus.Subscribe(context.Background(), "test-tenant", domain.EventAlertRaised, func(ctx context.Context, ev *domain.Event) error {
		select {
		case alertCh <- ev:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	body := map[string]interface{}{
		"transaction": map[string]interface{}{
			"customerId": "cust-hot",
			"amount":     20000.0,
			"currency":   "USD",
			"timestamp":  now.Format(time.RFC3339),
			"cash":       true,
			"crypto":     true,
			"countries":  []string{"IR", "KP"},
		},
		"profile": map[string]interface{}{
			"id":      "cust-hot",
			"country": "IR",
			"pep":     true,
		},
	}

	rr := stack.do(t, http.MethodPost, "/screen", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("screen: status %d: %s", rr.Code, rr.Body.String())
	}

	var screening domain.Screening
	json.Unmarshal(rr.Body.Bytes(), &screening)
	if screening.Alert.Decision == domain.DecisionApprove {
		t.Fatalf("expected non-approve decision, got %+v", screening.Alert)
	}

	select {
	case ev := <-alertCh:
		if ev.Screening == nil {
			t.Fatal("alert event has no screening")
		}
		if ev.Screening.ID != screening.ID {
			t.Errorf("alert carries wrong screening: %s != %s", ev.Screening.ID, screening.ID)
		}
		if ev.TenantID != "test-tenant" {
			t.Errorf("alert tenant = %q, want test-tenant", ev.TenantID)
		}
	case <-time.After(time.Second):
		t.Fatal("no alert published")
	}
}

func TestRulesetLifecycle(t *testing.T) {
	stack := newTestStack(t)
	now := time.Now().UTC()

	// Tighten the tiers so /screen outcomes change, then verify
	// persistence and reload round-trip.
	rs := domain.DefaultRuleset()
	rs.Version = "strict-v1"
	rs.Decision.Tiers = []domain.TierBand{
		{Tier: domain.AlertTierLow, Min: 0, Max: 5, Action: "auto-clear"},
		{Tier: domain.AlertTierCritical, Min: 5, Max: 100, Action: "block and file"},
	}

	rr := stack.do(t, http.MethodPut, "/ruleset", rs)
	if rr.Code != http.StatusOK {
		t.Fatalf("update ruleset: status %d: %s", rr.Code, rr.Body.String())
	}

	// A cash transaction now lands in CRITICAL under the strict tiers
	body := map[string]interface{}{
		"transaction": map[string]interface{}{
			"customerId": "cust-strict",
			"amount":     500.0,
			"currency":   "USD",
			"timestamp":  now.Format(time.RFC3339),
			"cash":       true,
		},
	}
	rr = stack.do(t, http.MethodPost, "/screen", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("screen: status %d: %s", rr.Code, rr.Body.String())
	}
	var screening domain.Screening
	json.Unmarshal(rr.Body.Bytes(), &screening)
	if screening.Alert.Tier != domain.AlertTierCritical {
		t.Errorf("expected CRITICAL under strict tiers, got %s", screening.Alert.Tier)
	}
	if screening.Alert.Decision != domain.DecisionBlock {
		t.Errorf("expected BLOCK, got %s", screening.Alert.Decision)
	}

	// Reload pulls the persisted ruleset back into the store
	rr = stack.do(t, http.MethodPost, "/ruleset/reload", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("reload: status %d: %s", rr.Code, rr.Body.String())
	}

	rr = stack.do(t, http.MethodGet, "/ruleset", nil)
	var resp struct {
		Version string `json:"version"`
	}
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Version != "strict-v1" {
		t.Errorf("active version = %s, want strict-v1", resp.Version)
	}
}

func TestTenantIsolationEndToEnd(t *testing.T) {
	stack := newTestStack(t)
	now := time.Now().UTC()

	rr := stack.do(t, http.MethodPost, "/screen", screenRequest("tx-iso", "cust-iso", 500, now))
	if rr.Code != http.StatusOK {
		t.Fatalf("screen: status %d", rr.Code)
	}

	// Another tenant must not see the transaction
	req := httptest.NewRequest(http.MethodGet, "/transactions/tx-iso", nil)
	req.Header.Set("X-Tenant-ID", "other-tenant")
	other := httptest.NewRecorder()
	stack.server.Router().ServeHTTP(other, req)
	if other.Code != http.StatusNotFound {
		t.Errorf("cross-tenant read: status %d, want 404", other.Code)
	}
}

func TestScreenThroughputSmoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping throughput smoke test in short mode")
	}

	stack := newTestStack(t)
	now := time.Now().UTC()

	for i := 0; i < 50; i++ {
		txID := fmt.Sprintf("tx-load-%d", i)
		rr := stack.do(t, http.MethodPost, "/screen", screenRequest(txID, "cust-load", 100+float64(i), now))
		if rr.Code != http.StatusOK {
			t.Fatalf("screen %d: status %d: %s", i, rr.Code, rr.Body.String())
		}
	}
}
