package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/brightreach/leadengine/internal/logger"
	"github.com/brightreach/leadengine/internal/repository"
	"github.com/google/uuid"
)

// SequenceHandler handles sequence opt-out requests
type SequenceHandler struct {
	sequenceRepo repository.SequenceRepository
}

// NewSequenceHandler creates a new SequenceHandler
func NewSequenceHandler(sequenceRepo repository.SequenceRepository) *SequenceHandler {
	return &SequenceHandler{
		sequenceRepo: sequenceRepo,
	}
}

// UnsubscribeRequest identifies the email opting out of follow-up emails
type UnsubscribeRequest struct {
	Email string `json:"email"`
}

// UnsubscribeResponse reports how many sequences the opt-out stopped
type UnsubscribeResponse struct {
	Email                 string `json:"email"`
	SequencesUnsubscribed int64  `json:"sequences_unsubscribed"`
	CorrelationID         string `json:"correlation_id"`
}

// HandleUnsubscribe handles POST /api/unsubscribe. An opt-out is honored
// from any sequence state and repeating it is a harmless no-op.
func (h *SequenceHandler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	correlationID := uuid.New().String()
	ctx := context.WithValue(r.Context(), logger.CorrelationIDKey, correlationID)

	if r.Method != http.MethodPost {
		respondError(w, ctx, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req UnsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, ctx, http.StatusBadRequest, "malformed JSON payload")
		return
	}
	defer r.Body.Close()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		respondError(w, ctx, http.StatusBadRequest, "email is required")
		return
	}

	affected, err := h.sequenceRepo.UnsubscribeByEmail(ctx, email)
	if err != nil {
		logger.LogError(ctx, "Failed to unsubscribe", err)
		respondError(w, ctx, http.StatusServiceUnavailable, "database error")
		return
	}

	logger.Info(ctx, "Processed unsubscribe", "email", email, "sequences", affected)

	respondJSON(w, ctx, http.StatusOK, UnsubscribeResponse{
		Email:                 email,
		SequencesUnsubscribed: affected,
		CorrelationID:         correlationID,
	})
}
