package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// maxPageBytes caps how much of the fetched page is handed to the model
const maxPageBytes = 64 * 1024

// WebsiteAnalysis is the fixed response contract of the analyzer. The model
// is instructed to return exactly this shape as JSON.
type WebsiteAnalysis struct {
	URL             string   `json:"url"`
	OverallScore    int      `json:"overall_score"`
	SEOScore        int      `json:"seo_score"`
	DesignScore     int      `json:"design_score"`
	ContentScore    int      `json:"content_score"`
	ConversionScore int      `json:"conversion_score"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`
}

// Analyzer scores a prospect's website with Gemini. It fetches the page
// itself and prompts the model for a fixed JSON verdict.
type Analyzer struct {
	client     *genai.Client
	model      *genai.GenerativeModel
	httpClient *http.Client
}

// NewAnalyzer creates an Analyzer backed by the given Gemini model
func NewAnalyzer(ctx context.Context, apiKey, modelName string) (*Analyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("analyzer requires an API key")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.2)
	model.SetMaxOutputTokens(2048)

	return &Analyzer{
		client: client,
		model:  model,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

// Close releases the underlying Gemini client
func (a *Analyzer) Close() {
	a.client.Close()
}

// AnalyzeWebsite fetches the page at url and asks the model to score it
func (a *Analyzer) AnalyzeWebsite(ctx context.Context, url string) (*WebsiteAnalysis, error) {
	page, err := a.fetchPage(ctx, url)
	if err != nil {
		return nil, err
	}

	resp, err := a.model.GenerateContent(ctx, genai.Text(buildPrompt(url, page)))
	if err != nil {
		return nil, fmt.Errorf("failed to generate analysis: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no analysis generated")
	}

	text := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	analysis, err := parseAnalysis(text)
	if err != nil {
		return nil, err
	}

	analysis.URL = url
	return analysis, nil
}

// fetchPage downloads the page body, truncated to maxPageBytes
func (a *Analyzer) fetchPage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid website URL: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch website: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("website returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read website body: %w", err)
	}

	return string(body), nil
}

// parseAnalysis unmarshals the model's reply, tolerating markdown code
// fences around the JSON
func parseAnalysis(text string) (*WebsiteAnalysis, error) {
	cleaned := stripCodeFences(text)

	var analysis WebsiteAnalysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}

	return &analysis, nil
}

// stripCodeFences removes a surrounding ```json ... ``` block when present
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)

	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	return strings.TrimSpace(text)
}

// buildPrompt renders the fixed-contract analysis prompt for the page
func buildPrompt(url, page string) string {
	return fmt.Sprintf(`You are a senior marketing consultant auditing a prospect's website.

Analyze the following page from %s and respond with ONLY a JSON object, no markdown, no commentary, in exactly this shape:

{
  "overall_score": 0-100,
  "seo_score": 0-100,
  "design_score": 0-100,
  "content_score": 0-100,
  "conversion_score": 0-100,
  "strengths": ["..."],
  "weaknesses": ["..."],
  "recommendations": ["..."]
}

Page content:
%s`, url, page)
}
