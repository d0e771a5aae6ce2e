package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Service retrieves a customer's recent transaction history from the
// repository and keeps cheap rolling counters in the cache. The engine
// itself never touches storage; this service feeds it caller-side.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a new velocity service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// RecentHistory returns the customer's transactions inside the lookback
// window ending at ref.
func (s *Service) RecentHistory(ctx context.Context, tenantID, customerID string, lookback time.Duration, ref time.Time) (domain.RecentHistory, error) {
	if tenantID == "" || customerID == "" {
		return nil, fmt.Errorf("tenantID and customerID are required")
	}
	if s.repo == nil {
		return nil, fmt.Errorf("no data source available")
	}

	since := ref.Add(-lookback)
	txs, err := s.repo.GetCustomerTransactions(ctx, tenantID, customerID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}

	return domain.RecentHistory(txs), nil
}

// RecordScreening bumps the per-customer rolling counter and returns
// the new value for the window. Counter-based accounting is advisory:
// the authoritative velocity check runs over repository history.
func (s *Service) RecordScreening(ctx context.Context, tenantID, customerID string, window time.Duration) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.IncrementCounter(ctx, tenantID, "screenings:"+customerID, window)
}
