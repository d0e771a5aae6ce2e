package velocity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
)

var velocityRules = domain.VelocityRules{
	WindowHours:    24,
	MaxDailyCount:  3,
	MaxDailyAmount: 10000,
}

func TestCheck(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	current := domain.Transaction{ID: "tx-now", Amount: 1000, Timestamp: now}

	t.Run("NoHistory", func(t *testing.T) {
		finding, err := Check(current, nil, velocityRules)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(finding.Violations) != 0 {
			t.Errorf("expected no violations, got %v", finding.Violations)
		}
		if finding.Count != 1 || finding.TotalAmount != 1000 {
			t.Errorf("expected current transaction observed, got count=%d amount=%.2f", finding.Count, finding.TotalAmount)
		}
	})

	t.Run("CountViolation", func(t *testing.T) {
		history := domain.RecentHistory{
			{ID: "tx-1", Amount: 100, Timestamp: now.Add(-1 * time.Hour)},
			{ID: "tx-2", Amount: 100, Timestamp: now.Add(-2 * time.Hour)},
			{ID: "tx-3", Amount: 100, Timestamp: now.Add(-3 * time.Hour)},
		}

		finding, err := Check(current, history, velocityRules)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(finding.Violations) != 1 || finding.Violations[0] != domain.VelocityRuleMaxCount {
			t.Errorf("expected count violation, got %v", finding.Violations)
		}
		if finding.Count != 4 {
			t.Errorf("expected observed count 4, got %d", finding.Count)
		}
	})

	t.Run("AmountViolation", func(t *testing.T) {
		history := domain.RecentHistory{
			{ID: "tx-1", Amount: 9500, Timestamp: now.Add(-6 * time.Hour)},
		}

		finding, err := Check(current, history, velocityRules)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(finding.Violations) != 1 || finding.Violations[0] != domain.VelocityRuleMaxAmount {
			t.Errorf("expected amount violation, got %v", finding.Violations)
		}
	})

	t.Run("BothViolations", func(t *testing.T) {
		history := domain.RecentHistory{
			{ID: "tx-1", Amount: 4000, Timestamp: now.Add(-1 * time.Hour)},
			{ID: "tx-2", Amount: 4000, Timestamp: now.Add(-2 * time.Hour)},
			{ID: "tx-3", Amount: 4000, Timestamp: now.Add(-3 * time.Hour)},
		}

		finding, err := Check(current, history, velocityRules)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(finding.Violations) != 2 {
			t.Errorf("expected both violations, got %v", finding.Violations)
		}
	})

	t.Run("LimitsAreInclusive", func(t *testing.T) {
		// Exactly at both limits: 3 total transactions, 10000 total.
		history := domain.RecentHistory{
			{ID: "tx-1", Amount: 4500, Timestamp: now.Add(-1 * time.Hour)},
			{ID: "tx-2", Amount: 4500, Timestamp: now.Add(-2 * time.Hour)},
		}

		finding, err := Check(current, history, velocityRules)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(finding.Violations) != 0 {
			t.Errorf("at-limit usage should not violate, got %v", finding.Violations)
		}
	})

	t.Run("OldEntriesOutsideWindow", func(t *testing.T) {
		history := domain.RecentHistory{
			{ID: "tx-old-1", Amount: 50000, Timestamp: now.Add(-25 * time.Hour)},
			{ID: "tx-old-2", Amount: 50000, Timestamp: now.Add(-48 * time.Hour)},
		}

		finding, err := Check(current, history, velocityRules)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(finding.Violations) != 0 {
			t.Errorf("entries outside the window must not count, got %v", finding.Violations)
		}
		if finding.Count != 1 {
			t.Errorf("expected count 1, got %d", finding.Count)
		}
	})

	t.Run("MissingTimestamp", func(t *testing.T) {
		history := domain.RecentHistory{{ID: "tx-bad", Amount: 100}}
		_, err := Check(current, history, velocityRules)
		if !errors.Is(err, domain.ErrInputFormat) {
			t.Errorf("expected ErrInputFormat, got %v", err)
		}
	})
}

func TestService(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "velocity-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	lruCache := cache.NewLRUCache(100)
	defer lruCache.Close()

	svc := NewService(repo, lruCache)

	ctx := context.Background()
	tenantID := "tenant-001"
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		tx := &domain.Transaction{
			ID:         fmt.Sprintf("tx-%d", i),
			CustomerID: "cust-001",
			Amount:     100,
			Currency:   "USD",
			Timestamp:  now.Add(-time.Duration(i) * time.Hour),
			CreatedAt:  now,
		}
		if err := repo.SaveTransaction(ctx, tenantID, tx); err != nil {
			t.Fatalf("failed to save transaction: %v", err)
		}
	}

	t.Run("RecentHistory", func(t *testing.T) {
		history, err := svc.RecentHistory(ctx, tenantID, "cust-001", 3*time.Hour+time.Minute, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 4 {
			t.Errorf("expected 4 entries inside window, got %d", len(history))
		}
	})

	t.Run("UnknownCustomer", func(t *testing.T) {
		history, err := svc.RecentHistory(ctx, tenantID, "cust-unknown", 24*time.Hour, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 0 {
			t.Errorf("expected empty history, got %d", len(history))
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		history, err := svc.RecentHistory(ctx, "other-tenant", "cust-001", 24*time.Hour, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 0 {
			t.Errorf("expected no cross-tenant history, got %d", len(history))
		}
	})

	t.Run("RequiresIdentifiers", func(t *testing.T) {
		if _, err := svc.RecentHistory(ctx, "", "cust-001", time.Hour, now); err == nil {
			t.Error("expected error for empty tenantID")
		}
		if _, err := svc.RecentHistory(ctx, tenantID, "", time.Hour, now); err == nil {
			t.Error("expected error for empty customerID")
		}
	})

	t.Run("RecordScreening", func(t *testing.T) {
		first, err := svc.RecordScreening(ctx, tenantID, "cust-001", time.Hour)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := svc.RecordScreening(ctx, tenantID, "cust-001", time.Hour)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if second != first+1 {
			t.Errorf("expected counter to increment, got %d then %d", first, second)
		}
	})
}

func TestServiceNoDataSource(t *testing.T) {
	svc := &Service{}
	_, err := svc.RecentHistory(context.Background(), "tenant", "cust", time.Hour, time.Now())
	if err == nil {
		t.Error("expected error with no data source")
	}
}
