package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brightreach/leadengine/internal/models"
)

// ProfileRepository persists progressive profiles and behavior profiles,
// both keyed by lowercased email.
type ProfileRepository interface {
	// UpsertProfile inserts or replaces the progressive profile for an email
	UpsertProfile(ctx context.Context, profile *models.ProgressiveProfile) error

	// GetProfileByEmail retrieves the progressive profile for an email.
	// Returns nil without error when none exists.
	GetProfileByEmail(ctx context.Context, email string) (*models.ProgressiveProfile, error)

	// UpsertBehaviorProfile inserts or replaces the behavior profile for an email
	UpsertBehaviorProfile(ctx context.Context, profile *models.UserBehaviorProfile) error

	// GetBehaviorProfileByEmail retrieves the behavior profile for an email.
	// Returns nil without error when none exists.
	GetBehaviorProfileByEmail(ctx context.Context, email string) (*models.UserBehaviorProfile, error)
}

// profileRepository is the concrete implementation of ProfileRepository
type profileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new ProfileRepository instance
func NewProfileRepository(db *sql.DB) ProfileRepository {
	return &profileRepository{
		db: db,
	}
}

// UpsertProfile inserts or replaces the progressive profile for an email
func (r *profileRepository) UpsertProfile(ctx context.Context, profile *models.ProgressiveProfile) error {
	query := `
		INSERT INTO progressive_profile (
			email, fields, current_stage, completeness, last_updated
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			fields = EXCLUDED.fields,
			current_stage = EXCLUDED.current_stage,
			completeness = EXCLUDED.completeness,
			last_updated = EXCLUDED.last_updated
	`

	fields, err := json.Marshal(profile.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal profile fields: %w", err)
	}

	if profile.LastUpdated.IsZero() {
		profile.LastUpdated = time.Now()
	}

	_, err = r.db.ExecContext(
		ctx,
		query,
		profile.Email,
		fields,
		profile.CurrentStage,
		profile.Completeness,
		profile.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	return nil
}

// GetProfileByEmail retrieves the progressive profile for an email
func (r *profileRepository) GetProfileByEmail(ctx context.Context, email string) (*models.ProgressiveProfile, error) {
	query := `
		SELECT email, fields, current_stage, completeness, last_updated
		FROM progressive_profile
		WHERE email = $1
	`

	profile := &models.ProgressiveProfile{}
	var fields []byte

	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&profile.Email,
		&fields,
		&profile.CurrentStage,
		&profile.Completeness,
		&profile.LastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	profile.Fields = map[string]string{}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &profile.Fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profile fields: %w", err)
		}
	}

	return profile, nil
}

// UpsertBehaviorProfile inserts or replaces the behavior profile for an email
func (r *profileRepository) UpsertBehaviorProfile(ctx context.Context, profile *models.UserBehaviorProfile) error {
	query := `
		INSERT INTO behavior_profile (
			email, snapshot, engagement_score, conversion_probability,
			next_best_action, last_seen
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO UPDATE SET
			snapshot = EXCLUDED.snapshot,
			engagement_score = EXCLUDED.engagement_score,
			conversion_probability = EXCLUDED.conversion_probability,
			next_best_action = EXCLUDED.next_best_action,
			last_seen = EXCLUDED.last_seen
	`

	snapshot, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal behavior profile: %w", err)
	}

	_, err = r.db.ExecContext(
		ctx,
		query,
		profile.Email,
		snapshot,
		profile.EngagementScore,
		profile.ConversionProbability,
		profile.NextBestAction,
		profile.LastSeen,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert behavior profile: %w", err)
	}

	return nil
}

// GetBehaviorProfileByEmail retrieves the behavior profile for an email
func (r *profileRepository) GetBehaviorProfileByEmail(ctx context.Context, email string) (*models.UserBehaviorProfile, error) {
	query := `
		SELECT snapshot
		FROM behavior_profile
		WHERE email = $1
	`

	var snapshot []byte
	err := r.db.QueryRowContext(ctx, query, email).Scan(&snapshot)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get behavior profile: %w", err)
	}

	profile := &models.UserBehaviorProfile{}
	if err := json.Unmarshal(snapshot, profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal behavior profile: %w", err)
	}

	return profile, nil
}
