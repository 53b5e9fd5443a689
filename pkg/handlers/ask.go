// Package handlers exposes the engine's thin HTTP surface.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pi-qualytics/insight-engine/pkg/models"
)

// maxQuestionLength bounds request bodies; a question longer than this is a
// prompt, not a question.
const maxQuestionLength = 2000

// Runner is the pipeline surface the ask handler needs.
type Runner interface {
	Execute(ctx context.Context, question, assetID string) *models.ExecutionOutcome
}

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
	AssetID  string `json:"asset_id"`
}

// AskHandler runs questions through the pipeline.
type AskHandler struct {
	engine Runner
	logger *zap.Logger
}

// NewAskHandler creates an AskHandler backed by the given pipeline.
func NewAskHandler(engine Runner, logger *zap.Logger) *AskHandler {
	return &AskHandler{engine: engine, logger: logger}
}

// RegisterRoutes registers the ask handler's routes on the given mux.
func (h *AskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/ask", h.Ask)
}

// Ask handles POST /api/ask. The outcome is returned as-is: pipeline
// failures are statuses inside a 200 response, not HTTP errors, so clients
// always get the audit trail fields.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		_ = ErrorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}

	req.Question = strings.TrimSpace(req.Question)
	req.AssetID = strings.TrimSpace(req.AssetID)
	switch {
	case req.Question == "":
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "question is required")
		return
	case len(req.Question) > maxQuestionLength:
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "question is too long")
		return
	case req.AssetID == "":
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "asset_id is required")
		return
	}

	outcome := h.engine.Execute(r.Context(), req.Question, req.AssetID)

	if err := WriteJSON(w, http.StatusOK, outcome); err != nil {
		h.logger.Error("Failed to encode ask response", zap.Error(err))
	}
}
