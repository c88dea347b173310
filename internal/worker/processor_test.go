package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/brightreach/leadengine/internal/client"
	"github.com/brightreach/leadengine/internal/logger"
	"github.com/brightreach/leadengine/internal/models"
	"github.com/brightreach/leadengine/internal/queue"
	"github.com/brightreach/leadengine/internal/services"
)

func init() {
	// Initialize logger for tests
	logger.Init()
}

// In-memory fakes for the processor's dependencies. The repositories and
// queue are driven entirely by maps so the pipeline logic can be tested
// without a database.

type fakeQueue struct {
	enqueued  []*queue.Job
	retried   map[int64]time.Duration
	failed    map[int64]string
	completed map[int64]bool
	nextID    int64
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		retried:   map[int64]time.Duration{},
		failed:    map[int64]string{},
		completed: map[int64]bool{},
	}
}

func (q *fakeQueue) Enqueue(ctx context.Context, jobType string, payload map[string]interface{}) error {
	return q.EnqueueWithDelay(ctx, jobType, payload, 0)
}

func (q *fakeQueue) EnqueueWithDelay(ctx context.Context, jobType string, payload map[string]interface{}, delay time.Duration) error {
	q.nextID++
	q.enqueued = append(q.enqueued, &queue.Job{
		ID:        q.nextID,
		Type:      jobType,
		Payload:   payload,
		CreatedAt: time.Now(),
		NextRunAt: time.Now().Add(delay),
	})
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context) (*queue.Job, error) {
	if len(q.enqueued) == 0 {
		return nil, nil
	}
	job := q.enqueued[0]
	q.enqueued = q.enqueued[1:]
	job.Attempts++
	return job, nil
}

func (q *fakeQueue) Complete(ctx context.Context, jobID int64) error {
	q.completed[jobID] = true
	return nil
}

func (q *fakeQueue) Retry(ctx context.Context, jobID int64, delay time.Duration) error {
	q.retried[jobID] = delay
	return nil
}

func (q *fakeQueue) Fail(ctx context.Context, jobID int64, errorMsg string) error {
	q.failed[jobID] = errorMsg
	return nil
}

func (q *fakeQueue) HealthCheck(ctx context.Context) error { return nil }
func (q *fakeQueue) Close() error                          { return nil }

type fakeLeadRepo struct {
	leads  map[int64]*models.InboundLead
	nextID int64
}

func newFakeLeadRepo() *fakeLeadRepo {
	return &fakeLeadRepo{leads: map[int64]*models.InboundLead{}}
}

func (r *fakeLeadRepo) CreateLead(ctx context.Context, lead *models.InboundLead) error {
	r.nextID++
	lead.ID = r.nextID
	if lead.Status == "" {
		lead.Status = models.LeadStatusReceived
	}
	r.leads[lead.ID] = lead
	return nil
}

func (r *fakeLeadRepo) GetLeadByID(ctx context.Context, id int64) (*models.InboundLead, error) {
	lead, ok := r.leads[id]
	if !ok {
		return nil, fmt.Errorf("lead not found: %d", id)
	}
	return lead, nil
}

func (r *fakeLeadRepo) UpdateLeadStatus(ctx context.Context, id int64, status models.LeadStatus) error {
	lead, ok := r.leads[id]
	if !ok {
		return fmt.Errorf("lead not found: %d", id)
	}
	lead.Status = status
	return nil
}

func (r *fakeLeadRepo) UpdateLeadRejection(ctx context.Context, id int64, errs []string) error {
	lead, ok := r.leads[id]
	if !ok {
		return fmt.Errorf("lead not found: %d", id)
	}
	lead.Status = models.LeadStatusRejected
	lead.RejectionErrors = errs
	return nil
}

func (r *fakeLeadRepo) UpdateLeadQualification(ctx context.Context, id int64, validated *models.Lead, score models.LeadScore, sequenceType models.SequenceType) error {
	lead, ok := r.leads[id]
	if !ok {
		return fmt.Errorf("lead not found: %d", id)
	}
	lead.Status = models.LeadStatusQualified
	lead.Lead = validated
	lead.TotalScore = score.TotalScore
	lead.Qualification = string(score.Qualification)
	lead.Priority = string(score.Priority)
	lead.SequenceType = string(sequenceType)
	return nil
}

func (r *fakeLeadRepo) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (r *fakeLeadRepo) UpdateLeadStatusTx(ctx context.Context, tx *sql.Tx, id int64, status models.LeadStatus) error {
	return r.UpdateLeadStatus(ctx, id, status)
}

func (r *fakeLeadRepo) GetLeadCountsByStatus(ctx context.Context) (map[string]int, error) {
	counts := map[string]int{}
	for _, lead := range r.leads {
		counts[string(lead.Status)]++
	}
	return counts, nil
}

func (r *fakeLeadRepo) GetLeadCountsByQualification(ctx context.Context) (map[string]int, error) {
	counts := map[string]int{}
	for _, lead := range r.leads {
		if lead.Qualification != "" {
			counts[lead.Qualification]++
		}
	}
	return counts, nil
}

func (r *fakeLeadRepo) GetRecentLeads(ctx context.Context, limit int) ([]*models.InboundLead, error) {
	leads := make([]*models.InboundLead, 0, len(r.leads))
	for _, lead := range r.leads {
		leads = append(leads, lead)
	}
	return leads, nil
}

type fakeProfileRepo struct {
	profiles  map[string]*models.ProgressiveProfile
	behaviors map[string]*models.UserBehaviorProfile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{
		profiles:  map[string]*models.ProgressiveProfile{},
		behaviors: map[string]*models.UserBehaviorProfile{},
	}
}

func (r *fakeProfileRepo) UpsertProfile(ctx context.Context, profile *models.ProgressiveProfile) error {
	r.profiles[profile.Email] = profile
	return nil
}

func (r *fakeProfileRepo) GetProfileByEmail(ctx context.Context, email string) (*models.ProgressiveProfile, error) {
	return r.profiles[email], nil
}

func (r *fakeProfileRepo) UpsertBehaviorProfile(ctx context.Context, profile *models.UserBehaviorProfile) error {
	r.behaviors[profile.Email] = profile
	return nil
}

func (r *fakeProfileRepo) GetBehaviorProfileByEmail(ctx context.Context, email string) (*models.UserBehaviorProfile, error) {
	return r.behaviors[email], nil
}

type fakeSequenceRepo struct {
	sequences map[string]*models.FollowUpSequence
}

func newFakeSequenceRepo() *fakeSequenceRepo {
	return &fakeSequenceRepo{sequences: map[string]*models.FollowUpSequence{}}
}

func (r *fakeSequenceRepo) CreateSequence(ctx context.Context, sequence *models.FollowUpSequence) error {
	r.sequences[sequence.ID] = sequence
	return nil
}

func (r *fakeSequenceRepo) GetSequenceByID(ctx context.Context, id string) (*models.FollowUpSequence, error) {
	sequence, ok := r.sequences[id]
	if !ok {
		return nil, fmt.Errorf("sequence not found: %s", id)
	}
	return sequence, nil
}

func (r *fakeSequenceRepo) GetActiveSequenceByEmail(ctx context.Context, email string) (*models.FollowUpSequence, error) {
	for _, sequence := range r.sequences {
		if sequence.Email == email && sequence.Status == models.SequenceStatusActive {
			return sequence, nil
		}
	}
	return nil, nil
}

func (r *fakeSequenceRepo) GetSequencesByLeadID(ctx context.Context, leadID int64) ([]*models.FollowUpSequence, error) {
	var out []*models.FollowUpSequence
	for _, sequence := range r.sequences {
		if sequence.LeadID == leadID {
			out = append(out, sequence)
		}
	}
	return out, nil
}

func (r *fakeSequenceRepo) UpdateSequence(ctx context.Context, sequence *models.FollowUpSequence) error {
	if _, ok := r.sequences[sequence.ID]; !ok {
		return fmt.Errorf("sequence not found: %s", sequence.ID)
	}
	r.sequences[sequence.ID] = sequence
	return nil
}

func (r *fakeSequenceRepo) GetDueSequences(ctx context.Context, now time.Time, limit int) ([]*models.FollowUpSequence, error) {
	var out []*models.FollowUpSequence
	for _, sequence := range r.sequences {
		if sequence.Status == models.SequenceStatusActive && sequence.NextEmailDate != nil && !sequence.NextEmailDate.After(now) {
			out = append(out, sequence)
		}
	}
	return out, nil
}

func (r *fakeSequenceRepo) UnsubscribeByEmail(ctx context.Context, email string) (int64, error) {
	var affected int64
	for _, sequence := range r.sequences {
		if sequence.Email == email && sequence.Status != models.SequenceStatusUnsubscribed {
			sequence.Unsubscribe()
			affected++
		}
	}
	return affected, nil
}

type fakeNotifier struct {
	leadNotifications []*models.EnhancedLead
	emails            []client.FollowUpEmail
	leadErr           error
	emailErr          error
}

func (n *fakeNotifier) SendLeadNotification(ctx context.Context, lead *models.EnhancedLead) (*client.DeliveryResponse, error) {
	if n.leadErr != nil {
		return nil, n.leadErr
	}
	n.leadNotifications = append(n.leadNotifications, lead)
	return &client.DeliveryResponse{StatusCode: 200, Success: true}, nil
}

func (n *fakeNotifier) SendFollowUpEmail(ctx context.Context, email client.FollowUpEmail) (*client.DeliveryResponse, error) {
	if n.emailErr != nil {
		return nil, n.emailErr
	}
	n.emails = append(n.emails, email)
	return &client.DeliveryResponse{StatusCode: 202, Success: true}, nil
}

type processorFixture struct {
	processor    *Processor
	queue        *fakeQueue
	leadRepo     *fakeLeadRepo
	profileRepo  *fakeProfileRepo
	sequenceRepo *fakeSequenceRepo
	notifier     *fakeNotifier
}

func newProcessorFixture() *processorFixture {
	f := &processorFixture{
		queue:        newFakeQueue(),
		leadRepo:     newFakeLeadRepo(),
		profileRepo:  newFakeProfileRepo(),
		sequenceRepo: newFakeSequenceRepo(),
		notifier:     &fakeNotifier{},
	}

	f.processor = NewProcessor(ProcessorConfig{
		Queue:        f.queue,
		LeadRepo:     f.leadRepo,
		ProfileRepo:  f.profileRepo,
		SequenceRepo: f.sequenceRepo,
		Validator:    services.NewValidator(),
		Qualifier:    services.NewQualifier(),
		Notifier:     f.notifier,
		PollInterval: 100 * time.Millisecond,
	})

	return f
}

func validRawPayload() models.JSONB {
	return models.JSONB{
		"name":      "Jordan Reyes",
		"email":     "jordan@summitlabs.com",
		"company":   "Summit Labs",
		"role":      "CEO/Founder",
		"needs":     []interface{}{"Strategic Partnership Development"},
		"timeline":  "ASAP (within 30 days)",
		"budget":    "$100,000+",
		"geography": "Global",
		"consent":   true,
	}
}

func (f *processorFixture) createLead(t *testing.T, payload models.JSONB) *models.InboundLead {
	lead := &models.InboundLead{
		RawPayload: payload,
		Status:     models.LeadStatusReceived,
	}
	if err := f.leadRepo.CreateLead(context.Background(), lead); err != nil {
		t.Fatalf("Failed to create lead: %v", err)
	}
	return lead
}

func qualifyJob(leadID int64) *queue.Job {
	return &queue.Job{
		ID:       1,
		Type:     queue.JobTypeQualifyLead,
		Payload:  queue.NewLeadJobPayload(leadID),
		Attempts: 1,
	}
}

func TestProcessQualifyLead_ValidLead(t *testing.T) {
	f := newProcessorFixture()
	ctx := context.Background()

	lead := f.createLead(t, validRawPayload())

	err := f.processor.processQualifyLead(ctx, qualifyJob(lead.ID))
	if err != nil {
		t.Fatalf("Failed to process lead: %v", err)
	}

	// Lead ends at NOTIFIED with the score fields stored
	updated, _ := f.leadRepo.GetLeadByID(ctx, lead.ID)
	if updated.Status != models.LeadStatusNotified {
		t.Errorf("Expected status NOTIFIED, got %s", updated.Status)
	}
	if updated.TotalScore != 490 {
		t.Errorf("Expected total score 490, got %d", updated.TotalScore)
	}
	if updated.Qualification != "HOT" {
		t.Errorf("Expected qualification HOT, got %s", updated.Qualification)
	}
	if updated.SequenceType != "QUALIFICATION" {
		t.Errorf("Expected sequence type QUALIFICATION, got %s", updated.SequenceType)
	}

	// Profile created and persisted
	profile := f.profileRepo.profiles["jordan@summitlabs.com"]
	if profile == nil {
		t.Fatal("Expected profile to be stored")
	}
	if profile.Fields["company"] != "Summit Labs" {
		t.Errorf("Expected company field in profile, got %q", profile.Fields["company"])
	}

	// One sequence created with a first-step schedule
	if len(f.sequenceRepo.sequences) != 1 {
		t.Fatalf("Expected 1 sequence, got %d", len(f.sequenceRepo.sequences))
	}
	for _, sequence := range f.sequenceRepo.sequences {
		if sequence.SequenceType != models.SequenceQualification {
			t.Errorf("Expected QUALIFICATION sequence, got %s", sequence.SequenceType)
		}
		if sequence.NextEmailDate == nil {
			t.Error("Expected first email to be scheduled")
		}
	}

	// Notification sent and follow-up job enqueued
	if len(f.notifier.leadNotifications) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(f.notifier.leadNotifications))
	}
	if len(f.queue.enqueued) != 1 {
		t.Fatalf("Expected 1 enqueued job, got %d", len(f.queue.enqueued))
	}
	if f.queue.enqueued[0].Type != queue.JobTypeSendFollowUp {
		t.Errorf("Expected send_followup job, got %s", f.queue.enqueued[0].Type)
	}
}

func TestProcessQualifyLead_InvalidLead(t *testing.T) {
	f := newProcessorFixture()
	ctx := context.Background()

	payload := validRawPayload()
	delete(payload, "company")
	payload["email"] = "not-an-email"
	lead := f.createLead(t, payload)

	err := f.processor.processQualifyLead(ctx, qualifyJob(lead.ID))
	if err != nil {
		t.Fatalf("Rejection should not be a processing error: %v", err)
	}

	updated, _ := f.leadRepo.GetLeadByID(ctx, lead.ID)
	if updated.Status != models.LeadStatusRejected {
		t.Errorf("Expected status REJECTED, got %s", updated.Status)
	}

	// Every violated constraint is recorded
	if len(updated.RejectionErrors) != 2 {
		t.Errorf("Expected 2 rejection errors, got %d: %v", len(updated.RejectionErrors), updated.RejectionErrors)
	}

	// Nothing downstream runs for a rejected lead
	if len(f.notifier.leadNotifications) != 0 {
		t.Error("Expected no notification for a rejected lead")
	}
	if len(f.sequenceRepo.sequences) != 0 {
		t.Error("Expected no sequence for a rejected lead")
	}
}

func TestProcessQualifyLead_AlreadyProcessed(t *testing.T) {
	f := newProcessorFixture()
	ctx := context.Background()

	lead := f.createLead(t, validRawPayload())
	lead.Status = models.LeadStatusNotified

	err := f.processor.processQualifyLead(ctx, qualifyJob(lead.ID))
	if err != nil {
		t.Fatalf("Re-processing should be a no-op: %v", err)
	}

	if len(f.notifier.leadNotifications) != 0 {
		t.Error("Expected no notification on re-processing")
	}
}

func TestProcessQualifyLead_ExistingActiveSequenceReused(t *testing.T) {
	f := newProcessorFixture()
	ctx := context.Background()

	lead := f.createLead(t, validRawPayload())

	existing := services.NewSequencer().NewSequence(lead.ID, "jordan@summitlabs.com", models.SequenceNurture)
	f.sequenceRepo.sequences[existing.ID] = existing

	err := f.processor.processQualifyLead(ctx, qualifyJob(lead.ID))
	if err != nil {
		t.Fatalf("Failed to process lead: %v", err)
	}

	if len(f.sequenceRepo.sequences) != 1 {
		t.Errorf("Expected the existing sequence to be reused, got %d sequences", len(f.sequenceRepo.sequences))
	}
}

func TestProcessQualifyLead_MissingLeadID(t *testing.T) {
	f := newProcessorFixture()

	job := &queue.Job{ID: 1, Type: queue.JobTypeQualifyLead, Payload: map[string]interface{}{}}

	if err := f.processor.processQualifyLead(context.Background(), job); err == nil {
		t.Error("Expected error for job without lead_id")
	}
}

func setupDueSequence(t *testing.T, f *processorFixture) *models.FollowUpSequence {
	lead := f.createLead(t, validRawPayload())

	sequence := services.NewSequencer().NewSequence(lead.ID, "jordan@summitlabs.com", models.SequenceWelcome)
	past := time.Now().Add(-time.Minute)
	sequence.NextEmailDate = &past
	f.sequenceRepo.sequences[sequence.ID] = sequence

	profile := models.NewProgressiveProfile("jordan@summitlabs.com")
	profile.Fields["name"] = "Jordan"
	profile.Fields["company"] = "Summit Labs"
	f.profileRepo.profiles[profile.Email] = profile

	return sequence
}

func followUpJob(sequence *models.FollowUpSequence) *queue.Job {
	return &queue.Job{
		ID:       2,
		Type:     queue.JobTypeSendFollowUp,
		Payload:  queue.NewSequenceJobPayload(sequence.ID, sequence.LeadID),
		Attempts: 1,
	}
}

func TestProcessSendFollowUp_SendsPersonalizedEmail(t *testing.T) {
	f := newProcessorFixture()
	ctx := context.Background()

	sequence := setupDueSequence(t, f)

	err := f.processor.processSendFollowUp(ctx, followUpJob(sequence))
	if err != nil {
		t.Fatalf("Failed to send follow-up: %v", err)
	}

	if len(f.notifier.emails) != 1 {
		t.Fatalf("Expected 1 email, got %d", len(f.notifier.emails))
	}

	email := f.notifier.emails[0]
	if email.To != "jordan@summitlabs.com" {
		t.Errorf("Expected email to jordan@summitlabs.com, got %s", email.To)
	}
	if email.TemplateID != "welcome_1" {
		t.Errorf("Expected template welcome_1, got %s", email.TemplateID)
	}
	if !strings.Contains(email.Subject, "Jordan") {
		t.Errorf("Expected personalized subject, got %q", email.Subject)
	}
	if strings.Contains(email.Subject, "{name}") {
		t.Errorf("Expected tokens to be substituted, got %q", email.Subject)
	}

	// Sequence advanced and next step scheduled
	updated := f.sequenceRepo.sequences[sequence.ID]
	if updated.CurrentStep != 1 {
		t.Errorf("Expected current step 1, got %d", updated.CurrentStep)
	}
	if len(updated.EmailsSent) != 1 {
		t.Errorf("Expected 1 sent email recorded, got %d", len(updated.EmailsSent))
	}
	if len(f.queue.enqueued) != 1 || f.queue.enqueued[0].Type != queue.JobTypeSendFollowUp {
		t.Error("Expected the next follow-up job to be enqueued")
	}
}

func TestProcessSendFollowUp_UnsubscribedDropsJob(t *testing.T) {
	f := newProcessorFixture()
	ctx := context.Background()

	sequence := setupDueSequence(t, f)
	sequence.Unsubscribe()

	err := f.processor.processSendFollowUp(ctx, followUpJob(sequence))
	if err != nil {
		t.Fatalf("Unsubscribed sequence should drop the job cleanly: %v", err)
	}

	if len(f.notifier.emails) != 0 {
		t.Error("Expected no email for unsubscribed sequence")
	}
	if len(f.queue.enqueued) != 0 {
		t.Error("Expected no rescheduled job for unsubscribed sequence")
	}
}

func TestProcessSendFollowUp_NotDueYetReschedules(t *testing.T) {
	f := newProcessorFixture()
	ctx := context.Background()

	sequence := setupDueSequence(t, f)
	future := time.Now().Add(2 * time.Hour)
	sequence.NextEmailDate = &future

	err := f.processor.processSendFollowUp(ctx, followUpJob(sequence))
	if err != nil {
		t.Fatalf("Early job should reschedule, not fail: %v", err)
	}

	if len(f.notifier.emails) != 0 {
		t.Error("Expected no email before the scheduled date")
	}
	if len(f.queue.enqueued) != 1 {
		t.Fatalf("Expected rescheduled job, got %d", len(f.queue.enqueued))
	}
	if !f.queue.enqueued[0].NextRunAt.After(time.Now().Add(time.Hour)) {
		t.Error("Expected reschedule to honor the next email date")
	}
}

func TestProcessSendFollowUp_LastStepCompletesSequence(t *testing.T) {
	f := newProcessorFixture()
	ctx := context.Background()

	sequence := setupDueSequence(t, f)
	sequence.CurrentStep = sequence.TotalSteps - 1

	err := f.processor.processSendFollowUp(ctx, followUpJob(sequence))
	if err != nil {
		t.Fatalf("Failed to send final email: %v", err)
	}

	updated := f.sequenceRepo.sequences[sequence.ID]
	if updated.Status != models.SequenceStatusCompleted {
		t.Errorf("Expected completed status, got %s", updated.Status)
	}
	if updated.IsActive {
		t.Error("Expected sequence to be inactive after completion")
	}

	// No further job for a completed sequence
	if len(f.queue.enqueued) != 0 {
		t.Errorf("Expected no next job after completion, got %d", len(f.queue.enqueued))
	}
}

func TestProcessSendFollowUp_EngagedGuardReschedules(t *testing.T) {
	f := newProcessorFixture()
	ctx := context.Background()

	sequence := setupDueSequence(t, f)
	sequence.CurrentStep = 3
	sequence.TotalSteps = 4
	sequence.SequenceType = models.SequenceNurture

	behavior := models.NewUserBehaviorProfile("jordan@summitlabs.com")
	behavior.EngagementScore = 95
	f.profileRepo.behaviors[behavior.Email] = behavior

	err := f.processor.processSendFollowUp(ctx, followUpJob(sequence))
	if err != nil {
		t.Fatalf("Guard suppression should not fail the job: %v", err)
	}

	if len(f.notifier.emails) != 0 {
		t.Error("Expected no email for a highly engaged lead past step 2")
	}
	if len(f.queue.enqueued) != 1 {
		t.Error("Expected a recheck job to be scheduled")
	}
}

func TestPollAndProcess_RetriableFailureReschedules(t *testing.T) {
	f := newProcessorFixture()
	ctx := context.Background()

	lead := f.createLead(t, validRawPayload())
	f.notifier.leadErr = models.NewDeliveryError(503, "upstream unavailable", true, nil)

	if err := f.queue.Enqueue(ctx, queue.JobTypeQualifyLead, queue.NewLeadJobPayload(lead.ID)); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	if err := f.processor.pollAndProcess(ctx); err != nil {
		t.Fatalf("Retriable failure should be rescheduled, not surfaced: %v", err)
	}

	if len(f.queue.retried) != 1 {
		t.Errorf("Expected job to be retried, retries=%d", len(f.queue.retried))
	}
	if len(f.queue.failed) != 0 {
		t.Errorf("Expected no failed jobs, got %d", len(f.queue.failed))
	}
}

func TestPollAndProcess_NonRetriableFailureFailsJob(t *testing.T) {
	f := newProcessorFixture()
	ctx := context.Background()

	lead := f.createLead(t, validRawPayload())
	f.notifier.leadErr = models.NewDeliveryError(422, "bad payload", false, nil)

	if err := f.queue.Enqueue(ctx, queue.JobTypeQualifyLead, queue.NewLeadJobPayload(lead.ID)); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	err := f.processor.pollAndProcess(ctx)
	if err == nil {
		t.Fatal("Expected the non-retriable failure to surface")
	}

	if len(f.queue.failed) != 1 {
		t.Errorf("Expected job to be failed, failed=%d", len(f.queue.failed))
	}
	if len(f.queue.retried) != 0 {
		t.Errorf("Expected no retries, got %d", len(f.queue.retried))
	}
}

func TestPollAndProcess_UnknownJobType(t *testing.T) {
	f := newProcessorFixture()
	ctx := context.Background()

	if err := f.queue.Enqueue(ctx, "mystery_job", map[string]interface{}{}); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	if err := f.processor.pollAndProcess(ctx); err == nil {
		t.Fatal("Expected error for unknown job type")
	}

	if len(f.queue.failed) != 1 {
		t.Error("Expected unknown job type to be marked failed")
	}
}

func TestPollAndProcess_EmptyQueue(t *testing.T) {
	f := newProcessorFixture()

	if err := f.processor.pollAndProcess(context.Background()); err != nil {
		t.Fatalf("Empty queue should be a quiet no-op: %v", err)
	}
}

func TestBackoffDelay_ClampedToTable(t *testing.T) {
	f := newProcessorFixture()

	if got := f.processor.backoffDelay(1); got != 30*time.Second {
		t.Errorf("Expected 30s for first retry, got %v", got)
	}
	if got := f.processor.backoffDelay(5); got != 480*time.Second {
		t.Errorf("Expected 480s for fifth retry, got %v", got)
	}
	// Attempts beyond the table reuse the last delay
	if got := f.processor.backoffDelay(50); got != 480*time.Second {
		t.Errorf("Expected 480s beyond the table, got %v", got)
	}
}
