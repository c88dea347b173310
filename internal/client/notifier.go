package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brightreach/leadengine/internal/models"
)

// NotifierClient delivers qualified-lead notifications and follow-up
// emails to the external notification endpoint
type NotifierClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewNotifierClient creates a new notification client
func NewNotifierClient(baseURL, token string, timeout time.Duration) *NotifierClient {
	return &NotifierClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// DeliveryResponse represents the response from the notification endpoint
type DeliveryResponse struct {
	StatusCode   int
	Body         string
	Success      bool
	ErrorMessage string
}

// FollowUpEmail is the outbound payload for one sequence email
type FollowUpEmail struct {
	To         string `json:"to"`
	Subject    string `json:"subject"`
	TemplateID string `json:"template_id"`
	SequenceID string `json:"sequence_id"`
	Step       int    `json:"step"`
	Priority   string `json:"priority"`
}

// SendLeadNotification posts the enhanced lead bundle to the notification
// endpoint. The error will be a *models.DeliveryError with the Retriable
// flag set appropriately.
func (c *NotifierClient) SendLeadNotification(ctx context.Context, lead *models.EnhancedLead) (*DeliveryResponse, error) {
	return c.post(ctx, c.baseURL+"/notifications/leads", lead)
}

// SendFollowUpEmail posts one sequence email for delivery
func (c *NotifierClient) SendFollowUpEmail(ctx context.Context, email FollowUpEmail) (*DeliveryResponse, error) {
	return c.post(ctx, c.baseURL+"/notifications/emails", email)
}

func (c *NotifierClient) post(ctx context.Context, url string, payload interface{}) (*DeliveryResponse, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, models.NewDeliveryError(0, "failed to marshal payload", false, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, models.NewDeliveryError(0, "failed to create request", false, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors are retriable
		return nil, models.NewDeliveryError(0, "network error", true, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		// Failed to read response body - treat as retriable
		return nil, models.NewDeliveryError(resp.StatusCode, "failed to read response body", true, err)
	}

	bodyString := string(bodyBytes)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &DeliveryResponse{
			StatusCode: resp.StatusCode,
			Body:       bodyString,
			Success:    true,
		}, nil
	}

	retriable := isRetriableStatusCode(resp.StatusCode)
	errorMessage := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, bodyString)

	return &DeliveryResponse{
		StatusCode:   resp.StatusCode,
		Body:         bodyString,
		Success:      false,
		ErrorMessage: errorMessage,
	}, models.NewDeliveryError(resp.StatusCode, errorMessage, retriable, nil)
}

// isRetriableStatusCode determines if an HTTP status code should trigger a retry
func isRetriableStatusCode(statusCode int) bool {
	// 5xx errors are retriable (server errors)
	if statusCode >= 500 && statusCode < 600 {
		return true
	}

	// 429 Too Many Requests is retriable
	if statusCode == 429 {
		return true
	}

	// 4xx errors (except 429) are not retriable (client errors)
	if statusCode >= 400 && statusCode < 500 {
		return false
	}

	// Other status codes (3xx, etc.) are not retriable
	return false
}
