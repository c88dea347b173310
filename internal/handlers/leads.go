package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/brightreach/leadengine/internal/logger"
	"github.com/brightreach/leadengine/internal/models"
	"github.com/brightreach/leadengine/internal/queue"
	"github.com/brightreach/leadengine/internal/repository"
	"github.com/brightreach/leadengine/internal/services"
	"github.com/google/uuid"
)

// LeadHandler handles lead submission requests
type LeadHandler struct {
	leadRepo  repository.LeadRepository
	queue     queue.Queue
	validator *services.Validator
}

// NewLeadHandler creates a new LeadHandler
func NewLeadHandler(leadRepo repository.LeadRepository, q queue.Queue, validator *services.Validator) *LeadHandler {
	return &LeadHandler{
		leadRepo:  leadRepo,
		queue:     q,
		validator: validator,
	}
}

// LeadResponse represents the response returned to submission callers
type LeadResponse struct {
	LeadID        int64  `json:"lead_id"`
	Status        string `json:"status"`
	CorrelationID string `json:"correlation_id"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// ValidationErrorResponse carries every violated constraint of a rejected
// submission, not just the first
type ValidationErrorResponse struct {
	Error         string   `json:"error"`
	Errors        []string `json:"errors"`
	CorrelationID string   `json:"correlation_id,omitempty"`
}

// HandleLeadSubmission handles POST /api/leads
func (h *LeadHandler) HandleLeadSubmission(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	// Generate correlation ID for request tracing
	correlationID := uuid.New().String()
	ctx := context.WithValue(r.Context(), logger.CorrelationIDKey, correlationID)

	logger.Info(ctx, "Received lead submission",
		"remote_addr", r.RemoteAddr,
		"method", r.Method,
	)

	if r.Method != http.MethodPost {
		respondError(w, ctx, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.LogError(ctx, "Failed to read request body", err)
		respondError(w, ctx, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()

	var rawPayload map[string]interface{}
	if err := json.Unmarshal(body, &rawPayload); err != nil {
		logger.LogError(ctx, "Malformed JSON payload", err)
		respondError(w, ctx, http.StatusBadRequest, "malformed JSON payload")
		return
	}

	// Run validation synchronously so callers get every field error up
	// front. The stored lead is validated again in the worker; only clean
	// submissions are worth a queue slot.
	result := h.validator.ValidateLead(rawPayload)
	if !result.Valid {
		logger.Info(ctx, "Lead submission failed validation", "errors", result.Errors.Messages())
		respondJSON(w, ctx, http.StatusUnprocessableEntity, ValidationErrorResponse{
			Error:         "validation failed",
			Errors:        result.Errors.Messages(),
			CorrelationID: correlationID,
		})
		return
	}

	// Extract headers for audit trail
	headers := make(map[string]interface{})
	for key, values := range r.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	lead := &models.InboundLead{
		ReceivedAt:    time.Now(),
		RawPayload:    rawPayload,
		SourceHeaders: headers,
		Status:        models.LeadStatusReceived,
	}

	if err := h.leadRepo.CreateLead(ctx, lead); err != nil {
		logger.LogError(ctx, "Failed to create lead", err)
		respondError(w, ctx, http.StatusServiceUnavailable, "database error")
		return
	}

	ctx = context.WithValue(ctx, logger.LeadIDKey, lead.ID)

	logger.Info(ctx, "Created lead", "status", lead.Status)

	// Enqueue the qualification pipeline
	jobPayload := queue.NewLeadJobPayload(lead.ID)
	if err := h.queue.Enqueue(ctx, queue.JobTypeQualifyLead, jobPayload); err != nil {
		logger.LogError(ctx, "Failed to enqueue job", err)
		respondError(w, ctx, http.StatusServiceUnavailable, "queue unavailable")
		return
	}

	logger.Info(ctx, "Enqueued qualification job")

	duration := time.Since(startTime)
	logger.LogSlowOperation(ctx, "lead_submission", duration)

	response := LeadResponse{
		LeadID:        lead.ID,
		Status:        string(lead.Status),
		CorrelationID: correlationID,
	}

	respondJSON(w, ctx, http.StatusAccepted, response)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, ctx context.Context, statusCode int, data interface{}) {
	if correlationID, ok := ctx.Value(logger.CorrelationIDKey).(string); ok {
		w.Header().Set("X-Correlation-ID", correlationID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.LogError(ctx, "Failed to encode response", err)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, ctx context.Context, statusCode int, message string) {
	correlationID := ""
	if id, ok := ctx.Value(logger.CorrelationIDKey).(string); ok {
		correlationID = id
	}

	response := ErrorResponse{
		Error:         message,
		CorrelationID: correlationID,
	}
	respondJSON(w, ctx, statusCode, response)
}
