package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brightreach/leadengine/internal/models"
)

// SequenceRepository defines the interface for follow-up sequence
// persistence operations
type SequenceRepository interface {
	// CreateSequence creates a new follow-up sequence record
	CreateSequence(ctx context.Context, sequence *models.FollowUpSequence) error

	// GetSequenceByID retrieves a sequence by its ID
	GetSequenceByID(ctx context.Context, id string) (*models.FollowUpSequence, error)

	// GetActiveSequenceByEmail retrieves the active sequence for an email,
	// if one exists
	GetActiveSequenceByEmail(ctx context.Context, email string) (*models.FollowUpSequence, error)

	// GetSequencesByLeadID retrieves all sequences ever created for a lead
	GetSequencesByLeadID(ctx context.Context, leadID int64) ([]*models.FollowUpSequence, error)

	// UpdateSequence persists the full mutable state of a sequence
	UpdateSequence(ctx context.Context, sequence *models.FollowUpSequence) error

	// GetDueSequences returns active sequences whose next email date has
	// passed, oldest first
	GetDueSequences(ctx context.Context, now time.Time, limit int) ([]*models.FollowUpSequence, error)

	// UnsubscribeByEmail moves every sequence for an email into the
	// unsubscribed state and returns how many were affected
	UnsubscribeByEmail(ctx context.Context, email string) (int64, error)
}

// sequenceRepository is the concrete implementation of SequenceRepository
type sequenceRepository struct {
	db *sql.DB
}

// NewSequenceRepository creates a new SequenceRepository instance
func NewSequenceRepository(db *sql.DB) SequenceRepository {
	return &sequenceRepository{
		db: db,
	}
}

const sequenceColumns = `
	id, lead_id, email, sequence_type, current_step, total_steps,
	emails_sent, is_active, status, next_email_date, created_at, updated_at
`

// CreateSequence creates a new follow-up sequence record
func (r *sequenceRepository) CreateSequence(ctx context.Context, sequence *models.FollowUpSequence) error {
	query := `
		INSERT INTO follow_up_sequence (
			id, lead_id, email, sequence_type, current_step, total_steps,
			emails_sent, is_active, status, next_email_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	now := time.Now()
	if sequence.CreatedAt.IsZero() {
		sequence.CreatedAt = now
	}
	if sequence.UpdatedAt.IsZero() {
		sequence.UpdatedAt = now
	}

	emailsSent, err := marshalEmailsSent(sequence.EmailsSent)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(
		ctx,
		query,
		sequence.ID,
		sequence.LeadID,
		sequence.Email,
		sequence.SequenceType,
		sequence.CurrentStep,
		sequence.TotalSteps,
		emailsSent,
		sequence.IsActive,
		sequence.Status,
		sequence.NextEmailDate,
		sequence.CreatedAt,
		sequence.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sequence: %w", err)
	}

	return nil
}

// GetSequenceByID retrieves a sequence by its ID
func (r *sequenceRepository) GetSequenceByID(ctx context.Context, id string) (*models.FollowUpSequence, error) {
	query := `SELECT ` + sequenceColumns + ` FROM follow_up_sequence WHERE id = $1`

	sequence, err := scanSequence(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sequence not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sequence: %w", err)
	}

	return sequence, nil
}

// GetActiveSequenceByEmail retrieves the active sequence for an email.
// Returns nil without error when the email has no active sequence.
func (r *sequenceRepository) GetActiveSequenceByEmail(ctx context.Context, email string) (*models.FollowUpSequence, error) {
	query := `
		SELECT ` + sequenceColumns + `
		FROM follow_up_sequence
		WHERE email = $1 AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1
	`

	sequence, err := scanSequence(r.db.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active sequence: %w", err)
	}

	return sequence, nil
}

// GetSequencesByLeadID retrieves all sequences ever created for a lead
func (r *sequenceRepository) GetSequencesByLeadID(ctx context.Context, leadID int64) ([]*models.FollowUpSequence, error) {
	query := `
		SELECT ` + sequenceColumns + `
		FROM follow_up_sequence
		WHERE lead_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sequences: %w", err)
	}
	defer rows.Close()

	return collectSequences(rows)
}

// UpdateSequence persists the full mutable state of a sequence
func (r *sequenceRepository) UpdateSequence(ctx context.Context, sequence *models.FollowUpSequence) error {
	query := `
		UPDATE follow_up_sequence
		SET current_step = $1, emails_sent = $2, is_active = $3,
			status = $4, next_email_date = $5, updated_at = $6
		WHERE id = $7
	`

	emailsSent, err := marshalEmailsSent(sequence.EmailsSent)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(
		ctx,
		query,
		sequence.CurrentStep,
		emailsSent,
		sequence.IsActive,
		sequence.Status,
		sequence.NextEmailDate,
		sequence.UpdatedAt,
		sequence.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sequence: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("sequence not found: %s", sequence.ID)
	}

	return nil
}

// GetDueSequences returns active sequences whose next email date has
// passed, oldest first. Sequences with no scheduled date are not due.
func (r *sequenceRepository) GetDueSequences(ctx context.Context, now time.Time, limit int) ([]*models.FollowUpSequence, error) {
	query := `
		SELECT ` + sequenceColumns + `
		FROM follow_up_sequence
		WHERE status = 'active'
		  AND is_active = true
		  AND next_email_date IS NOT NULL
		  AND next_email_date <= $1
		ORDER BY next_email_date ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due sequences: %w", err)
	}
	defer rows.Close()

	return collectSequences(rows)
}

// UnsubscribeByEmail moves every sequence for an email into the
// unsubscribed state. Opt-out applies to all of a lead's sequences at
// once, including paused and completed ones.
func (r *sequenceRepository) UnsubscribeByEmail(ctx context.Context, email string) (int64, error) {
	query := `
		UPDATE follow_up_sequence
		SET status = 'unsubscribed', is_active = false, updated_at = $1
		WHERE email = $2 AND status != 'unsubscribed'
	`

	result, err := r.db.ExecContext(ctx, query, time.Now(), email)
	if err != nil {
		return 0, fmt.Errorf("failed to unsubscribe sequences: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

func collectSequences(rows *sql.Rows) ([]*models.FollowUpSequence, error) {
	var sequences []*models.FollowUpSequence
	for rows.Next() {
		sequence, err := scanSequence(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sequence: %w", err)
		}
		sequences = append(sequences, sequence)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sequences: %w", err)
	}

	return sequences, nil
}

func scanSequence(row rowScanner) (*models.FollowUpSequence, error) {
	sequence := &models.FollowUpSequence{}
	var emailsSent []byte
	var nextEmailDate sql.NullTime

	err := row.Scan(
		&sequence.ID,
		&sequence.LeadID,
		&sequence.Email,
		&sequence.SequenceType,
		&sequence.CurrentStep,
		&sequence.TotalSteps,
		&emailsSent,
		&sequence.IsActive,
		&sequence.Status,
		&nextEmailDate,
		&sequence.CreatedAt,
		&sequence.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if nextEmailDate.Valid {
		sequence.NextEmailDate = &nextEmailDate.Time
	}

	sequence.EmailsSent = []models.SentEmail{}
	if len(emailsSent) > 0 {
		if err := json.Unmarshal(emailsSent, &sequence.EmailsSent); err != nil {
			return nil, fmt.Errorf("failed to unmarshal emails_sent column: %w", err)
		}
	}

	return sequence, nil
}

func marshalEmailsSent(emails []models.SentEmail) ([]byte, error) {
	if emails == nil {
		emails = []models.SentEmail{}
	}
	data, err := json.Marshal(emails)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal emails_sent: %w", err)
	}
	return data, nil
}
