package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal JSONB value: %v", value)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}

	*j = result
	return nil
}

// Lead is a validated form submission. Once built by the validator it is
// immutable: scoring, profiling, and sequencing read it but never mutate it.
type Lead struct {
	Company     string   `json:"company"`
	Role        string   `json:"role"`
	Needs       []string `json:"needs"`
	Timeline    string   `json:"timeline"`
	Budget      string   `json:"budget"`
	Geography   string   `json:"geography"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone,omitempty"`
	CurrentSite string   `json:"current_site,omitempty"`
	Consent     bool     `json:"consent"`
}

// BehaviorCounters are the optional browser-side signals attached to a lead
// before scoring. All fields default to their zero value for a fresh lead.
type BehaviorCounters struct {
	PageViews        []string `json:"page_views,omitempty"`
	TimeOnSite       int      `json:"time_on_site,omitempty"`
	ReturnVisits     int      `json:"return_visits,omitempty"`
	ContentDownloads []string `json:"content_downloads,omitempty"`
	ChatEngagements  int      `json:"chat_engagements,omitempty"`
}

// InboundLead represents a lead submission as stored in the database,
// carrying the raw payload alongside the validated lead and the score
// fields computed for it.
type InboundLead struct {
	ID              int64      `json:"id" db:"id"`
	ReceivedAt      time.Time  `json:"received_at" db:"received_at"`
	RawPayload      JSONB      `json:"raw_payload" db:"raw_payload"`
	SourceHeaders   JSONB      `json:"source_headers,omitempty" db:"source_headers"`
	Status          LeadStatus `json:"status" db:"status"`
	RejectionErrors []string   `json:"rejection_errors,omitempty" db:"rejection_errors"`
	Lead            *Lead      `json:"lead,omitempty" db:"lead"`
	TotalScore      int        `json:"total_score" db:"total_score"`
	Qualification   string     `json:"qualification,omitempty" db:"qualification"`
	Priority        string     `json:"priority,omitempty" db:"priority"`
	SequenceType    string     `json:"sequence_type,omitempty" db:"sequence_type"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// CanTransitionTo checks if the lead can transition from its current status to the target status
func (l *InboundLead) CanTransitionTo(target LeadStatus) bool {
	// Terminal states cannot transition
	if l.Status.IsTerminal() {
		return false
	}

	switch l.Status {
	case LeadStatusReceived:
		// RECEIVED can transition to REJECTED or QUALIFIED
		return target == LeadStatusRejected || target == LeadStatusQualified

	case LeadStatusQualified:
		// QUALIFIED can transition to NOTIFIED
		return target == LeadStatusNotified

	default:
		return false
	}
}

// TransitionTo attempts to transition the lead to a new status
// Returns an error if the transition is not allowed
func (l *InboundLead) TransitionTo(target LeadStatus) error {
	if !l.CanTransitionTo(target) {
		return fmt.Errorf("invalid status transition from %s to %s", l.Status, target)
	}

	l.Status = target
	l.UpdatedAt = time.Now()
	return nil
}

// MarkRejected marks the lead as rejected with the validation errors
func (l *InboundLead) MarkRejected(errs []string) error {
	if err := l.TransitionTo(LeadStatusRejected); err != nil {
		return err
	}

	l.RejectionErrors = errs
	return nil
}

// MarkQualified marks the lead as scored and qualified
func (l *InboundLead) MarkQualified() error {
	return l.TransitionTo(LeadStatusQualified)
}

// MarkNotified marks the lead as handed off to the notification collaborator
func (l *InboundLead) MarkNotified() error {
	return l.TransitionTo(LeadStatusNotified)
}

// EnhancedLead is the bundle handed to the notification collaborator: the
// original lead plus everything the qualification pipeline computed for it.
type EnhancedLead struct {
	Lead               Lead                 `json:"lead"`
	Score              LeadScore            `json:"score"`
	Profile            *ProgressiveProfile  `json:"profile,omitempty"`
	Behavior           *UserBehaviorProfile `json:"behavior,omitempty"`
	SequenceType       SequenceType         `json:"sequence_type"`
	RecommendedActions []string             `json:"recommended_actions"`
	EstimatedDealValue string               `json:"estimated_deal_value"`
}
