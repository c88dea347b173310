package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/brightreach/leadengine/internal/analyzer"
	"github.com/brightreach/leadengine/internal/logger"
	"github.com/google/uuid"
)

// WebsiteAnalyzer is the analysis surface the handler depends on
type WebsiteAnalyzer interface {
	AnalyzeWebsite(ctx context.Context, url string) (*analyzer.WebsiteAnalysis, error)
}

// AnalyzeHandler handles website analysis requests. A nil analyzer means
// the feature is not configured and the endpoint answers 503.
type AnalyzeHandler struct {
	analyzer WebsiteAnalyzer
}

// NewAnalyzeHandler creates a new AnalyzeHandler
func NewAnalyzeHandler(a WebsiteAnalyzer) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzer: a,
	}
}

// AnalyzeRequest names the website to score
type AnalyzeRequest struct {
	URL string `json:"url"`
}

// HandleAnalyze handles POST /api/analyze
func (h *AnalyzeHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	correlationID := uuid.New().String()
	ctx := context.WithValue(r.Context(), logger.CorrelationIDKey, correlationID)

	if r.Method != http.MethodPost {
		respondError(w, ctx, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.analyzer == nil {
		respondError(w, ctx, http.StatusServiceUnavailable, "website analyzer not configured")
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, ctx, http.StatusBadRequest, "malformed JSON payload")
		return
	}
	defer r.Body.Close()

	url := strings.TrimSpace(req.URL)
	if url == "" {
		respondError(w, ctx, http.StatusBadRequest, "url is required")
		return
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		respondError(w, ctx, http.StatusBadRequest, "url must be http or https")
		return
	}

	logger.Info(ctx, "Analyzing website", "url", url)

	analysis, err := h.analyzer.AnalyzeWebsite(ctx, url)
	if err != nil {
		logger.LogError(ctx, "Website analysis failed", err, "url", url)
		respondError(w, ctx, http.StatusBadGateway, "analysis failed")
		return
	}

	respondJSON(w, ctx, http.StatusOK, analysis)
}
