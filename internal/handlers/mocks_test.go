package handlers

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/brightreach/leadengine/internal/logger"
	"github.com/brightreach/leadengine/internal/models"
	"github.com/brightreach/leadengine/internal/queue"
)

func init() {
	// Initialize logger for tests
	logger.Init()
}

// mockLeadRepo is an in-memory LeadRepository for handler tests
type mockLeadRepo struct {
	leads          []*models.InboundLead
	nextID         int64
	createErr      error
	countsByStatus map[string]int
	countsByTier   map[string]int
}

func (m *mockLeadRepo) CreateLead(ctx context.Context, lead *models.InboundLead) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	lead.ID = m.nextID
	m.leads = append(m.leads, lead)
	return nil
}

func (m *mockLeadRepo) GetLeadByID(ctx context.Context, id int64) (*models.InboundLead, error) {
	for _, lead := range m.leads {
		if lead.ID == id {
			return lead, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockLeadRepo) UpdateLeadStatus(ctx context.Context, id int64, status models.LeadStatus) error {
	return nil
}

func (m *mockLeadRepo) UpdateLeadRejection(ctx context.Context, id int64, errs []string) error {
	return nil
}

func (m *mockLeadRepo) UpdateLeadQualification(ctx context.Context, id int64, lead *models.Lead, score models.LeadScore, sequenceType models.SequenceType) error {
	return nil
}

func (m *mockLeadRepo) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (m *mockLeadRepo) UpdateLeadStatusTx(ctx context.Context, tx *sql.Tx, id int64, status models.LeadStatus) error {
	return nil
}

func (m *mockLeadRepo) GetLeadCountsByStatus(ctx context.Context) (map[string]int, error) {
	return m.countsByStatus, nil
}

func (m *mockLeadRepo) GetLeadCountsByQualification(ctx context.Context) (map[string]int, error) {
	return m.countsByTier, nil
}

func (m *mockLeadRepo) GetRecentLeads(ctx context.Context, limit int) ([]*models.InboundLead, error) {
	if len(m.leads) <= limit {
		return m.leads, nil
	}
	return m.leads[:limit], nil
}

// mockQueue records enqueued jobs for handler tests
type mockQueue struct {
	jobs       []string
	payloads   []map[string]interface{}
	enqueueErr error
}

func (m *mockQueue) Enqueue(ctx context.Context, jobType string, payload map[string]interface{}) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.jobs = append(m.jobs, jobType)
	m.payloads = append(m.payloads, payload)
	return nil
}

func (m *mockQueue) EnqueueWithDelay(ctx context.Context, jobType string, payload map[string]interface{}, delay time.Duration) error {
	return m.Enqueue(ctx, jobType, payload)
}

func (m *mockQueue) Dequeue(ctx context.Context) (*queue.Job, error) { return nil, nil }
func (m *mockQueue) Complete(ctx context.Context, jobID int64) error { return nil }
func (m *mockQueue) Retry(ctx context.Context, jobID int64, delay time.Duration) error {
	return nil
}
func (m *mockQueue) Fail(ctx context.Context, jobID int64, errorMsg string) error { return nil }
func (m *mockQueue) HealthCheck(ctx context.Context) error                        { return nil }
func (m *mockQueue) Close() error                                                 { return nil }

// mockProfileRepo is an in-memory ProfileRepository for handler tests
type mockProfileRepo struct {
	profiles  map[string]*models.ProgressiveProfile
	behaviors map[string]*models.UserBehaviorProfile
	upsertErr error
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{
		profiles:  map[string]*models.ProgressiveProfile{},
		behaviors: map[string]*models.UserBehaviorProfile{},
	}
}

func (m *mockProfileRepo) UpsertProfile(ctx context.Context, profile *models.ProgressiveProfile) error {
	m.profiles[profile.Email] = profile
	return nil
}

func (m *mockProfileRepo) GetProfileByEmail(ctx context.Context, email string) (*models.ProgressiveProfile, error) {
	return m.profiles[email], nil
}

func (m *mockProfileRepo) UpsertBehaviorProfile(ctx context.Context, profile *models.UserBehaviorProfile) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.behaviors[profile.Email] = profile
	return nil
}

func (m *mockProfileRepo) GetBehaviorProfileByEmail(ctx context.Context, email string) (*models.UserBehaviorProfile, error) {
	return m.behaviors[email], nil
}

// mockSequenceRepo covers the unsubscribe surface for handler tests
type mockSequenceRepo struct {
	unsubscribed   []string
	unsubAffected  int64
	unsubscribeErr error
}

func (m *mockSequenceRepo) CreateSequence(ctx context.Context, sequence *models.FollowUpSequence) error {
	return nil
}

func (m *mockSequenceRepo) GetSequenceByID(ctx context.Context, id string) (*models.FollowUpSequence, error) {
	return nil, sql.ErrNoRows
}

func (m *mockSequenceRepo) GetActiveSequenceByEmail(ctx context.Context, email string) (*models.FollowUpSequence, error) {
	return nil, nil
}

func (m *mockSequenceRepo) GetSequencesByLeadID(ctx context.Context, leadID int64) ([]*models.FollowUpSequence, error) {
	return nil, nil
}

func (m *mockSequenceRepo) UpdateSequence(ctx context.Context, sequence *models.FollowUpSequence) error {
	return nil
}

func (m *mockSequenceRepo) GetDueSequences(ctx context.Context, now time.Time, limit int) ([]*models.FollowUpSequence, error) {
	return nil, nil
}

func (m *mockSequenceRepo) UnsubscribeByEmail(ctx context.Context, email string) (int64, error) {
	if m.unsubscribeErr != nil {
		return 0, m.unsubscribeErr
	}
	m.unsubscribed = append(m.unsubscribed, email)
	return m.unsubAffected, nil
}
