package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/brightreach/leadengine/internal/models"
)

// LeadRepository defines the interface for lead data persistence operations
type LeadRepository interface {
	// CreateLead creates a new inbound lead record
	CreateLead(ctx context.Context, lead *models.InboundLead) error

	// GetLeadByID retrieves a lead by its ID
	GetLeadByID(ctx context.Context, id int64) (*models.InboundLead, error)

	// UpdateLeadStatus updates the status of a lead atomically
	UpdateLeadStatus(ctx context.Context, id int64, status models.LeadStatus) error

	// UpdateLeadRejection marks a lead as rejected with its validation errors
	UpdateLeadRejection(ctx context.Context, id int64, errs []string) error

	// UpdateLeadQualification stores the computed score fields and moves the
	// lead to QUALIFIED
	UpdateLeadQualification(ctx context.Context, id int64, lead *models.Lead, score models.LeadScore, sequenceType models.SequenceType) error

	// BeginTx starts a new database transaction
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// UpdateLeadStatusTx updates the status of a lead within a transaction
	UpdateLeadStatusTx(ctx context.Context, tx *sql.Tx, id int64, status models.LeadStatus) error

	// GetLeadCountsByStatus returns counts of leads grouped by status
	GetLeadCountsByStatus(ctx context.Context) (map[string]int, error)

	// GetLeadCountsByQualification returns counts of scored leads grouped by
	// qualification tier
	GetLeadCountsByQualification(ctx context.Context) (map[string]int, error)

	// GetRecentLeads returns the most recent leads ordered by received_at
	GetRecentLeads(ctx context.Context, limit int) ([]*models.InboundLead, error)
}

// leadRepository is the concrete implementation of LeadRepository
type leadRepository struct {
	db *sql.DB
}

// NewLeadRepository creates a new LeadRepository instance
func NewLeadRepository(db *sql.DB) LeadRepository {
	return &leadRepository{
		db: db,
	}
}

// CreateLead creates a new inbound lead record
func (r *leadRepository) CreateLead(ctx context.Context, lead *models.InboundLead) error {
	query := `
		INSERT INTO inbound_lead (
			received_at, raw_payload, source_headers, status,
			rejection_errors, lead, total_score, qualification,
			priority, sequence_type, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	now := time.Now()
	if lead.ReceivedAt.IsZero() {
		lead.ReceivedAt = now
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	if lead.UpdatedAt.IsZero() {
		lead.UpdatedAt = now
	}
	if lead.Status == "" {
		lead.Status = models.LeadStatusReceived
	}

	leadJSON, err := marshalLead(lead.Lead)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(
		ctx,
		query,
		lead.ReceivedAt,
		lead.RawPayload,
		lead.SourceHeaders,
		lead.Status,
		pq.Array(lead.RejectionErrors),
		leadJSON,
		lead.TotalScore,
		nullIfEmpty(lead.Qualification),
		nullIfEmpty(lead.Priority),
		nullIfEmpty(lead.SequenceType),
		lead.CreatedAt,
		lead.UpdatedAt,
	).Scan(&lead.ID)

	if err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}

	return nil
}

// GetLeadByID retrieves a lead by its ID
func (r *leadRepository) GetLeadByID(ctx context.Context, id int64) (*models.InboundLead, error) {
	query := `
		SELECT
			id, received_at, raw_payload, source_headers, status,
			rejection_errors, lead, total_score, qualification,
			priority, sequence_type, created_at, updated_at
		FROM inbound_lead
		WHERE id = $1
	`

	lead, err := scanLead(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("lead not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	return lead, nil
}

// UpdateLeadStatus updates the status of a lead atomically
func (r *leadRepository) UpdateLeadStatus(ctx context.Context, id int64, status models.LeadStatus) error {
	query := `
		UPDATE inbound_lead
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}

	return requireRowAffected(result, id)
}

// UpdateLeadRejection marks a lead as rejected with its validation errors
func (r *leadRepository) UpdateLeadRejection(ctx context.Context, id int64, errs []string) error {
	query := `
		UPDATE inbound_lead
		SET status = $1, rejection_errors = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.db.ExecContext(ctx, query, models.LeadStatusRejected, pq.Array(errs), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update lead rejection: %w", err)
	}

	return requireRowAffected(result, id)
}

// UpdateLeadQualification stores the validated lead and its computed score
// fields and moves the record to QUALIFIED in one statement.
func (r *leadRepository) UpdateLeadQualification(ctx context.Context, id int64, lead *models.Lead, score models.LeadScore, sequenceType models.SequenceType) error {
	query := `
		UPDATE inbound_lead
		SET status = $1, lead = $2, total_score = $3, qualification = $4,
			priority = $5, sequence_type = $6, updated_at = $7
		WHERE id = $8
	`

	leadJSON, err := marshalLead(lead)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(
		ctx,
		query,
		models.LeadStatusQualified,
		leadJSON,
		score.TotalScore,
		string(score.Qualification),
		string(score.Priority),
		string(sequenceType),
		time.Now(),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update lead qualification: %w", err)
	}

	return requireRowAffected(result, id)
}

// BeginTx starts a new database transaction
func (r *leadRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// UpdateLeadStatusTx updates the status of a lead within a transaction
func (r *leadRepository) UpdateLeadStatusTx(ctx context.Context, tx *sql.Tx, id int64, status models.LeadStatus) error {
	query := `
		UPDATE inbound_lead
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := tx.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update lead status in transaction: %w", err)
	}

	return requireRowAffected(result, id)
}

// GetLeadCountsByStatus returns counts of leads grouped by status
func (r *leadRepository) GetLeadCountsByStatus(ctx context.Context) (map[string]int, error) {
	return r.countsBy(ctx, `
		SELECT status, COUNT(*) as count
		FROM inbound_lead
		GROUP BY status
	`)
}

// GetLeadCountsByQualification returns counts of scored leads grouped by
// qualification tier. Unscored leads carry no tier and are excluded.
func (r *leadRepository) GetLeadCountsByQualification(ctx context.Context) (map[string]int, error) {
	return r.countsBy(ctx, `
		SELECT qualification, COUNT(*) as count
		FROM inbound_lead
		WHERE qualification IS NOT NULL
		GROUP BY qualification
	`)
}

func (r *leadRepository) countsBy(ctx context.Context, query string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query lead counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts[key] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return counts, nil
}

// GetRecentLeads returns the most recent leads ordered by received_at
func (r *leadRepository) GetRecentLeads(ctx context.Context, limit int) ([]*models.InboundLead, error) {
	query := `
		SELECT
			id, received_at, raw_payload, source_headers, status,
			rejection_errors, lead, total_score, qualification,
			priority, sequence_type, created_at, updated_at
		FROM inbound_lead
		ORDER BY received_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent leads: %w", err)
	}
	defer rows.Close()

	leads := make([]*models.InboundLead, 0, limit)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, lead)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return leads, nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row rowScanner) (*models.InboundLead, error) {
	lead := &models.InboundLead{}
	var rejectionErrors pq.StringArray
	var leadJSON []byte
	var qualification, priority, sequenceType sql.NullString

	err := row.Scan(
		&lead.ID,
		&lead.ReceivedAt,
		&lead.RawPayload,
		&lead.SourceHeaders,
		&lead.Status,
		&rejectionErrors,
		&leadJSON,
		&lead.TotalScore,
		&qualification,
		&priority,
		&sequenceType,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	lead.RejectionErrors = rejectionErrors
	lead.Qualification = qualification.String
	lead.Priority = priority.String
	lead.SequenceType = sequenceType.String

	if len(leadJSON) > 0 {
		validated := &models.Lead{}
		if err := json.Unmarshal(leadJSON, validated); err != nil {
			return nil, fmt.Errorf("failed to unmarshal lead column: %w", err)
		}
		lead.Lead = validated
	}

	return lead, nil
}

func marshalLead(lead *models.Lead) (interface{}, error) {
	if lead == nil {
		return nil, nil
	}
	data, err := json.Marshal(lead)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lead: %w", err)
	}
	return data, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func requireRowAffected(result sql.Result, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("lead not found: %d", id)
	}

	return nil
}
