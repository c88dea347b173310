package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/brightreach/leadengine/internal/logger"
	"github.com/brightreach/leadengine/internal/repository"
	"github.com/gorilla/mux"
)

// StatsHandler handles statistics and observability endpoints
type StatsHandler struct {
	leadRepo repository.LeadRepository
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(leadRepo repository.LeadRepository) *StatsHandler {
	return &StatsHandler{
		leadRepo: leadRepo,
	}
}

// LeadCountsResponse groups lead counts by status and qualification tier
type LeadCountsResponse struct {
	ByStatus        LeadCountsByStatus        `json:"by_status"`
	ByQualification LeadCountsByQualification `json:"by_qualification"`
}

// LeadCountsByStatus represents lead counts grouped by status
type LeadCountsByStatus struct {
	Received  int `json:"received"`
	Rejected  int `json:"rejected"`
	Qualified int `json:"qualified"`
	Notified  int `json:"notified"`
	Total     int `json:"total"`
}

// LeadCountsByQualification represents lead counts grouped by tier
type LeadCountsByQualification struct {
	Hot         int `json:"hot"`
	Warm        int `json:"warm"`
	Cold        int `json:"cold"`
	Unqualified int `json:"unqualified"`
}

// RecentLeadSummary represents a summary of a recent lead
type RecentLeadSummary struct {
	ID            int64    `json:"id"`
	ReceivedAt    string   `json:"received_at"`
	Status        string   `json:"status"`
	TotalScore    int      `json:"total_score"`
	Qualification string   `json:"qualification,omitempty"`
	SequenceType  string   `json:"sequence_type,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// HandleLeadCounts handles GET /api/stats/leads/counts
func (h *StatsHandler) HandleLeadCounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logger.Info(ctx, "Fetching lead counts")

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	statusCounts, err := h.leadRepo.GetLeadCountsByStatus(ctx)
	if err != nil {
		logger.LogError(ctx, "Failed to get lead counts by status", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	tierCounts, err := h.leadRepo.GetLeadCountsByQualification(ctx)
	if err != nil {
		logger.LogError(ctx, "Failed to get lead counts by qualification", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	total := 0
	for _, count := range statusCounts {
		total += count
	}

	response := LeadCountsResponse{
		ByStatus: LeadCountsByStatus{
			Received:  statusCounts["RECEIVED"],
			Rejected:  statusCounts["REJECTED"],
			Qualified: statusCounts["QUALIFIED"],
			Notified:  statusCounts["NOTIFIED"],
			Total:     total,
		},
		ByQualification: LeadCountsByQualification{
			Hot:         tierCounts["HOT"],
			Warm:        tierCounts["WARM"],
			Cold:        tierCounts["COLD"],
			Unqualified: tierCounts["UNQUALIFIED"],
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// HandleRecentLeads handles GET /api/stats/leads/recent
func (h *StatsHandler) HandleRecentLeads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logger.Info(ctx, "Fetching recent leads")

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Default limit: 50
	leads, err := h.leadRepo.GetRecentLeads(ctx, 50)
	if err != nil {
		logger.LogError(ctx, "Failed to get recent leads", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	response := make([]RecentLeadSummary, 0, len(leads))
	for _, lead := range leads {
		summary := RecentLeadSummary{
			ID:            lead.ID,
			ReceivedAt:    lead.ReceivedAt.Format("2006-01-02T15:04:05Z07:00"),
			Status:        string(lead.Status),
			TotalScore:    lead.TotalScore,
			Qualification: lead.Qualification,
			SequenceType:  lead.SequenceType,
			Errors:        lead.RejectionErrors,
		}
		response = append(response, summary)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// HandleGetLead handles GET /api/leads/{id}
func (h *StatsHandler) HandleGetLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	leadID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || leadID <= 0 {
		http.Error(w, "invalid lead ID", http.StatusBadRequest)
		return
	}

	ctx = context.WithValue(ctx, logger.LeadIDKey, leadID)
	logger.Info(ctx, "Fetching lead")

	lead, err := h.leadRepo.GetLeadByID(ctx, leadID)
	if err != nil {
		logger.LogError(ctx, "Failed to get lead", err)
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(lead)
}
