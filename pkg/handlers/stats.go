package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/pi-qualytics/insight-engine/pkg/models"
)

// StatsSource serves audit aggregates.
type StatsSource interface {
	Stats(ctx context.Context, days int) (*models.AuditStats, error)
}

// StatsHandler serves audit statistics for operational dashboards.
type StatsHandler struct {
	audit  StatsSource
	logger *zap.Logger
}

// NewStatsHandler creates a StatsHandler backed by the audit log.
func NewStatsHandler(audit StatsSource, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{audit: audit, logger: logger}
}

// RegisterRoutes registers the stats handler's routes on the given mux.
func (h *StatsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/audit/stats", h.Stats)
}

// Stats handles GET /api/audit/stats?days=N. Days defaults to 7.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		_ = ErrorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}

	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "days must be an integer between 1 and 365")
			return
		}
		days = parsed
	}

	stats, err := h.audit.Stats(r.Context(), days)
	if err != nil {
		h.logger.Error("Failed to load audit stats", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "stats_unavailable", "failed to load audit statistics")
		return
	}

	if err := WriteJSON(w, http.StatusOK, stats); err != nil {
		h.logger.Error("Failed to encode stats response", zap.Error(err))
	}
}
