package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brightreach/leadengine/internal/client"
	"github.com/brightreach/leadengine/internal/config"
	"github.com/brightreach/leadengine/internal/database"
	"github.com/brightreach/leadengine/internal/handlers"
	"github.com/brightreach/leadengine/internal/logger"
	"github.com/brightreach/leadengine/internal/models"
	"github.com/brightreach/leadengine/internal/queue"
	"github.com/brightreach/leadengine/internal/repository"
	"github.com/brightreach/leadengine/internal/services"
	"github.com/brightreach/leadengine/internal/worker"
)

// TestEndToEndLeadQualification tests the full flow: submission → validation →
// scoring → profiling → sequence assignment → notification
func TestEndToEndLeadQualification(t *testing.T) {
	ctx := context.Background()
	cfg, dbWrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()

	// Mock notification endpoint that returns success
	mockNotifier := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
		}

		expectedAuth := "Bearer " + cfg.Notifier.Token
		if auth := r.Header.Get("Authorization"); auth != expectedAuth {
			t.Errorf("Expected Authorization %s, got %s", expectedAuth, auth)
		}

		if r.URL.Path != "/notifications/leads" {
			t.Errorf("Expected path /notifications/leads, got %s", r.URL.Path)
		}

		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}

		if _, ok := payload["score"]; !ok {
			t.Error("Expected score field in notification payload")
		}
		if _, ok := payload["profile"]; !ok {
			t.Error("Expected profile field in notification payload")
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "notification-123",
			"status": "accepted",
		})
	}))
	defer mockNotifier.Close()

	cfg.Notifier.URL = mockNotifier.URL

	jobQueue, leadRepo, profileRepo, sequenceRepo := initComponents(t, dbWrapper)
	defer jobQueue.Close()

	leadHandler := handlers.NewLeadHandler(leadRepo, jobQueue, services.NewValidator())
	processor := newTestProcessor(cfg, jobQueue, leadRepo, profileRepo, sequenceRepo)

	// Step 1: Submit a lead
	leadPayload := map[string]interface{}{
		"name":      "Jordan Reyes",
		"email":     "jordan@summitlabs.com",
		"company":   "Summit Labs",
		"role":      "CEO/Founder",
		"needs":     []string{"Strategic Partnership Development"},
		"timeline":  "ASAP (within 30 days)",
		"budget":    "$100,000+",
		"geography": "Global",
		"consent":   true,
	}

	payloadBytes, _ := json.Marshal(leadPayload)
	req := httptest.NewRequest(http.MethodPost, "/api/leads", bytes.NewReader(payloadBytes))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	leadHandler.HandleLeadSubmission(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}

	var leadResponse handlers.LeadResponse
	if err := json.NewDecoder(rr.Body).Decode(&leadResponse); err != nil {
		t.Fatalf("Failed to decode lead response: %v", err)
	}

	if leadResponse.Status != string(models.LeadStatusReceived) {
		t.Errorf("Expected status RECEIVED, got %s", leadResponse.Status)
	}

	leadID := leadResponse.LeadID

	// Step 2: Verify lead was stored
	lead, err := leadRepo.GetLeadByID(ctx, leadID)
	if err != nil {
		t.Fatalf("Failed to get lead from database: %v", err)
	}

	if lead.Status != models.LeadStatusReceived {
		t.Errorf("Expected lead status RECEIVED, got %s", lead.Status)
	}

	// Step 3: Process the qualification job
	job := dequeueForced(t, ctx, dbWrapper, jobQueue)
	if job.Type != queue.JobTypeQualifyLead {
		t.Fatalf("Expected qualify_lead job, got %s", job.Type)
	}

	if err := processor.ProcessJobForTest(ctx, job); err != nil {
		t.Fatalf("Failed to process job: %v", err)
	}

	// Step 4: Verify lead status, score, and sequence assignment
	lead, err = leadRepo.GetLeadByID(ctx, leadID)
	if err != nil {
		t.Fatalf("Failed to get updated lead: %v", err)
	}

	if lead.Status != models.LeadStatusNotified {
		t.Errorf("Expected lead status NOTIFIED, got %s", lead.Status)
	}

	if lead.TotalScore != 490 {
		t.Errorf("Expected total score 490, got %d", lead.TotalScore)
	}

	if lead.Qualification != string(models.QualificationHot) {
		t.Errorf("Expected qualification HOT, got %s", lead.Qualification)
	}

	if lead.SequenceType != string(models.SequenceQualification) {
		t.Errorf("Expected sequence type QUALIFICATION, got %s", lead.SequenceType)
	}

	// Step 5: Verify the progressive profile was created
	profile, err := profileRepo.GetProfileByEmail(ctx, "jordan@summitlabs.com")
	if err != nil {
		t.Fatalf("Failed to get profile: %v", err)
	}
	if profile == nil {
		t.Fatal("Expected progressive profile to be created")
	}
	if profile.Fields["company"] != "Summit Labs" {
		t.Errorf("Expected profile company Summit Labs, got %v", profile.Fields["company"])
	}

	// Step 6: Verify an active sequence with a scheduled first email
	sequence, err := sequenceRepo.GetActiveSequenceByEmail(ctx, "jordan@summitlabs.com")
	if err != nil {
		t.Fatalf("Failed to get active sequence: %v", err)
	}
	if sequence == nil {
		t.Fatal("Expected an active follow-up sequence")
	}
	if sequence.SequenceType != models.SequenceQualification {
		t.Errorf("Expected QUALIFICATION sequence, got %s", sequence.SequenceType)
	}
	if sequence.NextEmailDate == nil {
		t.Error("Expected next email date to be scheduled")
	}

	// Step 7: Verify a follow-up job was enqueued
	var followUpJobs int
	err = dbWrapper.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM background_jobs WHERE job_type = $1 AND status = 'pending'",
		queue.JobTypeSendFollowUp).Scan(&followUpJobs)
	if err != nil {
		t.Fatalf("Failed to count follow-up jobs: %v", err)
	}
	if followUpJobs != 1 {
		t.Errorf("Expected 1 pending follow-up job, got %d", followUpJobs)
	}
}

// TestEndToEndLeadRejection verifies a stored lead that fails validation is
// marked REJECTED with its violations recorded and triggers no notification
func TestEndToEndLeadRejection(t *testing.T) {
	ctx := context.Background()
	cfg, dbWrapper, cleanup := setupTestEnvironment(t)
	defer cleanup()

	// Any notification call is a failure here
	mockNotifier := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("Unexpected notification call for rejected lead: %s", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer mockNotifier.Close()

	cfg.Notifier.URL = mockNotifier.URL

	jobQueue, leadRepo, profileRepo, sequenceRepo := initComponents(t, dbWrapper)
	defer jobQueue.Close()

	processor := newTestProcessor(cfg, jobQueue, leadRepo, profileRepo, sequenceRepo)

	// Store a lead directly with an invalid payload, bypassing the intake
	// validation the way a bulk import would
	lead := &models.InboundLead{
		ReceivedAt: time.Now(),
		RawPayload: models.JSONB{
			"name":      "No Company",
			"email":     "not-an-email",
			"role":      "CMO",
			"needs":     []interface{}{"Paid Advertising"},
			"timeline":  "Within 3 months",
			"budget":    "$25,000 - $50,000",
			"geography": "National",
			"consent":   true,
		},
		Status: models.LeadStatusReceived,
	}
	if err := leadRepo.CreateLead(ctx, lead); err != nil {
		t.Fatalf("Failed to create lead: %v", err)
	}

	if err := jobQueue.Enqueue(ctx, queue.JobTypeQualifyLead, queue.NewLeadJobPayload(lead.ID)); err != nil {
		t.Fatalf("Failed to enqueue job: %v", err)
	}

	job := dequeueForced(t, ctx, dbWrapper, jobQueue)
	if err := processor.ProcessJobForTest(ctx, job); err != nil {
		t.Fatalf("Failed to process job: %v", err)
	}

	updated, err := leadRepo.GetLeadByID(ctx, lead.ID)
	if err != nil {
		t.Fatalf("Failed to get updated lead: %v", err)
	}

	if updated.Status != models.LeadStatusRejected {
		t.Errorf("Expected lead status REJECTED, got %s", updated.Status)
	}

	if len(updated.RejectionErrors) != 2 {
		t.Errorf("Expected 2 rejection errors, got %d: %v", len(updated.RejectionErrors), updated.RejectionErrors)
	}

	// No profile or sequence should exist for a rejected lead
	profile, err := profileRepo.GetProfileByEmail(ctx, "not-an-email")
	if err != nil {
		t.Fatalf("Failed to query profile: %v", err)
	}
	if profile != nil {
		t.Error("Expected no profile for rejected lead")
	}
}

// newTestProcessor wires a processor against the shared test components
func newTestProcessor(cfg *config.Config, jobQueue queue.Queue, leadRepo repository.LeadRepository, profileRepo repository.ProfileRepository, sequenceRepo repository.SequenceRepository) *worker.Processor {
	notifier := client.NewNotifierClient(cfg.Notifier.URL, cfg.Notifier.Token, 30*time.Second)

	return worker.NewProcessor(worker.ProcessorConfig{
		Queue:               jobQueue,
		LeadRepo:            leadRepo,
		ProfileRepo:         profileRepo,
		SequenceRepo:        sequenceRepo,
		Validator:           services.NewValidator(),
		Qualifier:           services.NewQualifier(),
		Notifier:            notifier,
		PollInterval:        100 * time.Millisecond,
		MaxDeliveryAttempts: 5,
	})
}

// initComponents builds the queue and repositories for a test
func initComponents(t *testing.T, dbWrapper *database.DB) (*queue.DBQueue, repository.LeadRepository, repository.ProfileRepository, repository.SequenceRepository) {
	t.Helper()

	jobQueue, err := queue.NewDBQueue(dbWrapper.DB)
	if err != nil {
		t.Fatalf("Failed to initialize queue: %v", err)
	}

	return jobQueue,
		repository.NewLeadRepository(dbWrapper.DB),
		repository.NewProfileRepository(dbWrapper.DB),
		repository.NewSequenceRepository(dbWrapper.DB)
}

// dequeueForced pushes all pending jobs into the past and dequeues one
func dequeueForced(t *testing.T, ctx context.Context, dbWrapper *database.DB, jobQueue *queue.DBQueue) *queue.Job {
	t.Helper()

	_, err := dbWrapper.DB.ExecContext(ctx, "UPDATE background_jobs SET next_run_at = NOW() - INTERVAL '1 second' WHERE status = 'pending'")
	if err != nil {
		t.Fatalf("Failed to update job next_run_at: %v", err)
	}

	job, err := jobQueue.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue job: %v", err)
	}
	if job == nil {
		t.Fatal("Expected a pending job, got nil")
	}

	return job
}

// setupTestEnvironment initializes test configuration and database
func setupTestEnvironment(t *testing.T) (*config.Config, *database.DB, func()) {
	// Initialize logger for tests
	logger.Init()

	// Load test configuration
	cfg, err := config.Load()
	if err != nil {
		t.Skipf("Skipping test - failed to load config: %v", err)
		return nil, nil, nil
	}

	// Connect to test database
	dbWrapper, err := database.InitFromConfig(cfg)
	if err != nil {
		t.Skipf("Skipping test - failed to connect to database: %v", err)
		return nil, nil, nil
	}

	// Verify database connection
	if err := dbWrapper.DB.Ping(); err != nil {
		dbWrapper.Close()
		t.Skipf("Skipping test - database not available: %v", err)
		return nil, nil, nil
	}

	// Run migrations
	if err := database.RunMigrations(dbWrapper, "../../migrations"); err != nil {
		dbWrapper.Close()
		t.Skipf("Skipping test - failed to run migrations: %v", err)
		return nil, nil, nil
	}

	cleanup := func() {
		// Clean up test data
		ctx := context.Background()
		dbWrapper.DB.ExecContext(ctx, "DELETE FROM follow_up_sequence")
		dbWrapper.DB.ExecContext(ctx, "DELETE FROM behavior_profile")
		dbWrapper.DB.ExecContext(ctx, "DELETE FROM progressive_profile")
		dbWrapper.DB.ExecContext(ctx, "DELETE FROM inbound_lead")
		dbWrapper.DB.ExecContext(ctx, "DELETE FROM background_jobs")
		dbWrapper.Close()
	}

	return cfg, dbWrapper, cleanup
}
