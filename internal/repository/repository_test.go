package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()
	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestTransactionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tx := &domain.Transaction{
		ID:            "tx-1",
		TenantID:      "tenant-a",
		CustomerID:    "cust-1",
		Amount:        9500,
		Currency:      "USD",
		Timestamp:     ts,
		Cash:          true,
		International: true,
		Countries:     []string{"US", "PA"},
		Metadata:      map[string]interface{}{"channel": "branch"},
	}
	if err := repo.SaveTransaction(ctx, "tenant-a", tx); err != nil {
		t.Fatalf("SaveTransaction: %v", err)
	}

	got, err := repo.GetTransaction(ctx, "tenant-a", "tx-1")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Amount != 9500 || !got.Cash || !got.International || got.Crypto {
		t.Errorf("unexpected fields: %+v", got)
	}
	if len(got.Countries) != 2 || got.Countries[1] != "PA" {
		t.Errorf("countries not preserved: %v", got.Countries)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, ts)
	}
	if got.Metadata["channel"] != "branch" {
		t.Errorf("metadata not preserved: %v", got.Metadata)
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetTransaction(context.Background(), "tenant-a", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTenantIsolation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tx := &domain.Transaction{
		ID: "tx-shared", CustomerID: "cust-1", Amount: 100,
		Currency: "USD", Timestamp: time.Now().UTC(),
	}
	if err := repo.SaveTransaction(ctx, "tenant-a", tx); err != nil {
		t.Fatalf("SaveTransaction: %v", err)
	}

	if _, err := repo.GetTransaction(ctx, "tenant-b", "tx-shared"); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-tenant read should fail, got %v", err)
	}
	if _, err := repo.GetTransaction(ctx, "tenant-a", "tx-shared"); err != nil {
		t.Errorf("same-tenant read failed: %v", err)
	}
}

func TestGetCustomerTransactionsWindow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{0, -24 * time.Hour, -80 * time.Hour} {
		tx := &domain.Transaction{
			ID:         "tx-" + string(rune('a'+i)),
			CustomerID: "cust-1", Amount: 1000, Currency: "USD",
			Timestamp: base.Add(offset),
		}
		if err := repo.SaveTransaction(ctx, "tenant-a", tx); err != nil {
			t.Fatalf("SaveTransaction: %v", err)
		}
	}

	since := base.Add(-72 * time.Hour)
	got, err := repo.GetCustomerTransactions(ctx, "tenant-a", "cust-1", since)
	if err != nil {
		t.Fatalf("GetCustomerTransactions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d transactions, want 2", len(got))
	}
	if !got[0].Timestamp.After(got[1].Timestamp) {
		t.Errorf("expected newest first, got %v then %v", got[0].Timestamp, got[1].Timestamp)
	}
}

func TestRulesetUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rs := domain.DefaultRuleset()
	rs.Version = "v1"
	if err := repo.SaveRuleset(ctx, "tenant-a", rs); err != nil {
		t.Fatalf("SaveRuleset: %v", err)
	}

	rs2 := domain.DefaultRuleset()
	rs2.Version = "v2"
	rs2.Decision.SARThreshold = domain.Float(70)
	if err := repo.SaveRuleset(ctx, "tenant-a", rs2); err != nil {
		t.Fatalf("SaveRuleset upsert: %v", err)
	}

	got, err := repo.GetRuleset(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("GetRuleset: %v", err)
	}
	if got.Version != "v2" {
		t.Errorf("version = %s, want v2", got.Version)
	}
	if got.Decision.SARThreshold == nil || *got.Decision.SARThreshold != 70 {
		t.Errorf("sar threshold = %v, want 70", got.Decision.SARThreshold)
	}
}

func TestGetRulesetNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetRuleset(context.Background(), "tenant-empty")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestScreeningRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s := &domain.Screening{
		ID:         "scr-1",
		TenantID:   "tenant-a",
		TxID:       "tx-1",
		CustomerID: "cust-1",
		Amount:     9500,
		CustomerScore: domain.ComponentScore{
			Score:   35,
			Factors: []domain.Factor{{Code: "pep", Points: 35}},
		},
		CompositeScore: 42.5,
		Structuring:    domain.StructuringFinding{Detected: true, Occurrences: 3, TotalAmount: 27700, WindowHours: 72},
		Alert: domain.Alert{
			Tier:     domain.AlertTierHigh,
			Action:   "manual review",
			Decision: domain.DecisionReview,
		},
		Timestamp: time.Now().UTC(),
	}
	if err := repo.SaveScreening(ctx, "tenant-a", s); err != nil {
		t.Fatalf("SaveScreening: %v", err)
	}

	got, err := repo.GetScreening(ctx, "tenant-a", "scr-1")
	if err != nil {
		t.Fatalf("GetScreening: %v", err)
	}
	if got.CompositeScore != 42.5 {
		t.Errorf("composite = %v, want 42.5", got.CompositeScore)
	}
	if !got.Structuring.Detected || got.Structuring.Occurrences != 3 {
		t.Errorf("structuring finding lost: %+v", got.Structuring)
	}
	if got.Alert.Tier != domain.AlertTierHigh || got.Alert.Decision != domain.DecisionReview {
		t.Errorf("alert lost: %+v", got.Alert)
	}
	if len(got.CustomerScore.Factors) != 1 || got.CustomerScore.Factors[0].Code != "pep" {
		t.Errorf("factors lost: %+v", got.CustomerScore.Factors)
	}
}

func TestValidationErrors(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveTransaction(ctx, "", &domain.Transaction{ID: "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing tenant: %v", err)
	}
	if err := repo.SaveTransaction(ctx, "tenant-a", nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("nil transaction: %v", err)
	}
	if _, err := repo.GetScreening(ctx, "tenant-a", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing screening id: %v", err)
	}
}
