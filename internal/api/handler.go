package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
	"github.com/opensource-finance/kestrel/internal/ruleset"
	"github.com/opensource-finance/kestrel/internal/velocity"
)

// GlobalTenantID is used for the ruleset that applies to all tenants.
const GlobalTenantID = "*"

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	engine   *engine.Engine
	store    *ruleset.Store
	velocity *velocity.Service
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, store *ruleset.Store, vel *velocity.Service, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		engine:   eng,
		store:    store,
		velocity: vel,
		version:  version,
	}
}

// TransactionInput is the wire form of a transaction. Timestamps are
// RFC3339 strings and are validated before screening.
type TransactionInput struct {
	ID            string                 `json:"id,omitempty"`
	CustomerID    string                 `json:"customerId"`
	Amount        float64                `json:"amount"`
	Currency      string                 `json:"currency"`
	Timestamp     string                 `json:"timestamp"`
	Cash          bool                   `json:"cash,omitempty"`
	International bool                   `json:"international,omitempty"`
	Crypto        bool                   `json:"crypto,omitempty"`
	Countries     []string               `json:"countries,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

func (in *TransactionInput) toDomain(tenantID string) (domain.Transaction, error) {
	tx := domain.Transaction{
		ID:            in.ID,
		TenantID:      tenantID,
		CustomerID:    in.CustomerID,
		Amount:        in.Amount,
		Currency:      in.Currency,
		Cash:          in.Cash,
		International: in.International,
		Crypto:        in.Crypto,
		Countries:     in.Countries,
		Metadata:      in.Metadata,
	}
	if in.Timestamp == "" {
		return tx, domain.ErrInputFormat
	}
	ts, err := time.Parse(time.RFC3339, in.Timestamp)
	if err != nil {
		return tx, domain.ErrInputFormat
	}
	tx.Timestamp = ts.UTC()
	return tx, nil
}

// ScreenRequest is the request body for POST /screen. Profile and
// history are optional; missing parts are resolved from the cache and
// repository.
type ScreenRequest struct {
	Transaction TransactionInput        `json:"transaction"`
	Profile     *domain.CustomerProfile `json:"profile,omitempty"`
	History     []TransactionInput      `json:"history,omitempty"`
}

// Screen handles POST /screen requests.
func (h *Handler) Screen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req ScreenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Transaction.CustomerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction.customerId is required",
		})
		return
	}
	if req.Transaction.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction.amount must be positive",
		})
		return
	}

	tx, err := req.Transaction.toDomain(tenantID)
	if err != nil {
		// A malformed timestamp means risk could not be assessed. This
		// is a hard failure, never an implicit approval.
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": "invalid transaction timestamp: risk could not be assessed",
		})
		return
	}
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}

	history, historyDegraded, err := h.resolveHistory(r, &req, tenantID, tx.Timestamp)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": "invalid history timestamp: risk could not be assessed",
		})
		return
	}

	profile, profileDegraded := h.resolveProfile(r, &req, tenantID, tx.CustomerID)

	screening, err := h.engine.Screen(ctx, &engine.Input{
		Transaction: tx,
		Profile:     *profile,
		History:     history,
		TraceID:     traceID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInputFormat) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": "risk could not be assessed: " + err.Error(),
			})
			return
		}
		slog.Error("screening failed", "tx_id", tx.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "screening failed",
		})
		return
	}

	// Lookup failures are fail-open but never silent: the screening
	// records which signals it ran without.
	if historyDegraded {
		screening.Metadata.Degraded = append(screening.Metadata.Degraded, domain.SignalHistory)
	}
	if profileDegraded {
		screening.Metadata.Degraded = append(screening.Metadata.Degraded, domain.SignalProfile)
	}

	if h.repo != nil {
		if err := h.repo.SaveTransaction(ctx, tenantID, &tx); err != nil {
			slog.Error("failed to save transaction", "tx_id", tx.ID, "error", err)
		}
		if err := h.repo.SaveScreening(ctx, tenantID, screening); err != nil {
			slog.Error("failed to save screening", "screening_id", screening.ID, "error", err)
		}
	}

	if h.velocity != nil {
		if _, err := h.velocity.RecordScreening(ctx, tenantID, tx.CustomerID, h.engine.HistoryWindow()); err != nil {
			slog.Warn("failed to record screening counter", "customer_id", tx.CustomerID, "error", err)
		}
	}

	if h.bus != nil {
		completed := &domain.Event{
			TenantID:  tenantID,
			Kind:      domain.EventScreeningCompleted,
			TraceID:   traceID,
			Screening: screening,
		}
		if err := h.bus.Publish(ctx, completed); err != nil {
			slog.Error("failed to publish screening result", "screening_id", screening.ID, "error", err)
		}
		if engine.ShouldAlert(screening) {
			alert := &domain.Event{
				TenantID:  tenantID,
				Kind:      domain.EventAlertRaised,
				TraceID:   traceID,
				Screening: screening,
			}
			if err := h.bus.Publish(ctx, alert); err != nil {
				slog.Error("failed to publish alert", "screening_id", screening.ID, "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, screening)
}

// resolveProfile returns the profile from the request, the cache, or an
// empty profile. Missing profile data is not an error: scoring treats
// absent fields as zero risk. A failed cache lookup is reported as
// degraded so the fail-open is visible in the result.
func (h *Handler) resolveProfile(r *http.Request, req *ScreenRequest, tenantID, customerID string) (profile *domain.CustomerProfile, degraded bool) {
	if req.Profile != nil {
		return req.Profile, false
	}
	if h.cache != nil {
		cached, err := h.cache.GetProfile(r.Context(), tenantID, customerID)
		if err != nil {
			slog.Warn("profile lookup failed", "customer_id", customerID, "error", err)
			return &domain.CustomerProfile{ID: customerID}, true
		}
		if cached != nil {
			return cached, false
		}
	}
	return &domain.CustomerProfile{ID: customerID}, false
}

// resolveHistory returns the history from the request, or fetches the
// customer's recent transactions from the repository. An explicit empty
// array means "screen with no history"; an absent field triggers the
// fetch. A failed fetch screens without history and is reported as
// degraded: structuring and velocity ran blind for this call.
func (h *Handler) resolveHistory(r *http.Request, req *ScreenRequest, tenantID string, ref time.Time) (history domain.RecentHistory, degraded bool, err error) {
	if req.History != nil {
		history = make(domain.RecentHistory, 0, len(req.History))
		for i := range req.History {
			entry, err := req.History[i].toDomain(tenantID)
			if err != nil {
				return nil, false, err
			}
			history = append(history, entry)
		}
		return history, false, nil
	}

	if h.velocity == nil {
		return nil, true, nil
	}
	history, err = h.velocity.RecentHistory(r.Context(), tenantID, req.Transaction.CustomerID, h.engine.HistoryWindow(), ref)
	if err != nil {
		slog.Warn("history lookup failed", "customer_id", req.Transaction.CustomerID, "error", err)
		return nil, true, nil
	}
	return history, false, nil
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetScreening retrieves a screening by ID.
func (h *Handler) GetScreening(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	screeningID := chi.URLParam(r, "id")

	if screeningID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "screening id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	screening, err := h.repo.GetScreening(ctx, tenantID, screeningID)
	if err != nil {
		slog.Error("failed to get screening", "id", screeningID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "screening not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, screening)
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	tx, err := h.repo.GetTransaction(ctx, tenantID, txID)
	if err != nil {
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// GetRuleset returns the active ruleset snapshot.
func (h *Handler) GetRuleset(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": snap.Rules.Version,
		"ruleset": snap.Rules,
	})
}

// UpdateRuleset validates a new ruleset, swaps it into the active
// store, and persists it. An invalid ruleset is rejected outright and
// the previous configuration stays active.
func (h *Handler) UpdateRuleset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rs domain.Ruleset
	if err := json.NewDecoder(r.Body).Decode(&rs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := h.store.Swap(&rs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid ruleset: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleset(ctx, GlobalTenantID, &rs); err != nil {
			slog.Error("failed to persist ruleset", "version", rs.Version, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "ruleset applied but could not be persisted",
			})
			return
		}
	}

	slog.Info("ruleset updated", "version", rs.Version)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "ruleset updated",
		"version": rs.Version,
	})
}

// ReloadRuleset reloads the persisted ruleset into the active store.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRuleset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rs, err := h.repo.GetRuleset(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to load ruleset from repository", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load ruleset from repository",
		})
		return
	}

	if err := h.store.Swap(rs); err != nil {
		slog.Error("failed to swap ruleset", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload ruleset: " + err.Error(),
		})
		return
	}

	slog.Info("ruleset reloaded", "version", rs.Version)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "ruleset reloaded successfully",
		"version": rs.Version,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
