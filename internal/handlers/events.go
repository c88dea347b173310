package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/brightreach/leadengine/internal/logger"
	"github.com/brightreach/leadengine/internal/models"
	"github.com/brightreach/leadengine/internal/repository"
	"github.com/brightreach/leadengine/internal/services"
	"github.com/google/uuid"
)

// EventsHandler handles behavioral event ingestion
type EventsHandler struct {
	profileRepo repository.ProfileRepository
	tracker     *services.Tracker
}

// NewEventsHandler creates a new EventsHandler
func NewEventsHandler(profileRepo repository.ProfileRepository, tracker *services.Tracker) *EventsHandler {
	return &EventsHandler{
		profileRepo: profileRepo,
		tracker:     tracker,
	}
}

// EventBatchRequest is a batch of site-activity events for one email
type EventBatchRequest struct {
	Email  string                 `json:"email"`
	Events []models.BehaviorEvent `json:"events"`
}

// EventBatchResponse summarizes the behavior profile after the batch
type EventBatchResponse struct {
	Email                 string `json:"email"`
	EventsApplied         int    `json:"events_applied"`
	EngagementScore       int    `json:"engagement_score"`
	ConversionProbability int    `json:"conversion_probability"`
	NextBestAction        string `json:"next_best_action"`
	CorrelationID         string `json:"correlation_id"`
}

// HandleEventBatch handles POST /api/events
func (h *EventsHandler) HandleEventBatch(w http.ResponseWriter, r *http.Request) {
	correlationID := uuid.New().String()
	ctx := context.WithValue(r.Context(), logger.CorrelationIDKey, correlationID)

	if r.Method != http.MethodPost {
		respondError(w, ctx, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var batch EventBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		logger.LogError(ctx, "Malformed event batch", err)
		respondError(w, ctx, http.StatusBadRequest, "malformed JSON payload")
		return
	}
	defer r.Body.Close()

	email := strings.ToLower(strings.TrimSpace(batch.Email))
	if email == "" {
		respondError(w, ctx, http.StatusBadRequest, "email is required")
		return
	}
	if len(batch.Events) == 0 {
		respondError(w, ctx, http.StatusBadRequest, "events must not be empty")
		return
	}

	logger.Info(ctx, "Received event batch", "email", email, "events", len(batch.Events))

	profile, err := h.profileRepo.GetBehaviorProfileByEmail(ctx, email)
	if err != nil {
		logger.LogError(ctx, "Failed to load behavior profile", err)
		respondError(w, ctx, http.StatusServiceUnavailable, "database error")
		return
	}
	if profile == nil {
		profile = models.NewUserBehaviorProfile(email)
	}

	h.tracker.ApplyEvents(profile, batch.Events)

	if err := h.profileRepo.UpsertBehaviorProfile(ctx, profile); err != nil {
		logger.LogError(ctx, "Failed to store behavior profile", err)
		respondError(w, ctx, http.StatusServiceUnavailable, "database error")
		return
	}

	logger.Info(ctx, "Applied event batch",
		"engagement_score", profile.EngagementScore,
		"conversion_probability", profile.ConversionProbability,
		"next_best_action", profile.NextBestAction)

	respondJSON(w, ctx, http.StatusOK, EventBatchResponse{
		Email:                 email,
		EventsApplied:         len(batch.Events),
		EngagementScore:       profile.EngagementScore,
		ConversionProbability: profile.ConversionProbability,
		NextBestAction:        profile.NextBestAction,
		CorrelationID:         correlationID,
	})
}
