package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"casino-bot/internal/pkg/apperr"
	"casino-bot/internal/service"
)

// Pinger checks storage reachability. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Auditor compares a wallet with its ledger.
type Auditor interface {
	Audit(ctx context.Context, userID int64) (*service.AuditReport, error)
}

// Counter reports how many rounds a game table holds.
type Counter interface {
	Count() int
}

// Handler serves the ops endpoints.
type Handler struct {
	db      Pinger
	auditor Auditor
	tables  map[string]Counter
}

// NewHandler creates a Handler. tables maps game names to their tables.
func NewHandler(db Pinger, auditor Auditor, tables map[string]Counter) *Handler {
	return &Handler{db: db, auditor: auditor, tables: tables}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Rounds handles GET /rounds.
func (h *Handler) Rounds(w http.ResponseWriter, _ *http.Request) {
	counts := make(map[string]int, len(h.tables))
	for name, t := range h.tables {
		counts[name] = t.Count()
	}
	writeJSON(w, http.StatusOK, counts)
}

// Audit handles GET /users/{userId}/audit. A mismatch answers 409 with the report.
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	report, err := h.auditor.Audit(r.Context(), userID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, report)
	case errors.Is(err, apperr.ErrInvariant) && report != nil:
		log.Error().Err(err).Int64("user_id", userID).Msg("Ledger audit mismatch")
		writeJSON(w, http.StatusConflict, report)
	case errors.Is(err, apperr.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	default:
		log.Error().Err(err).Int64("user_id", userID).Msg("Ledger audit failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
