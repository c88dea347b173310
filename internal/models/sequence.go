package models

import (
	"time"
)

// SequenceType identifies one of the six canned communication sequences
type SequenceType string

const (
	SequenceWelcome       SequenceType = "WELCOME"
	SequenceNurture       SequenceType = "NURTURE"
	SequenceQualification SequenceType = "QUALIFICATION"
	SequenceProposal      SequenceType = "PROPOSAL"
	SequenceNegotiation   SequenceType = "NEGOTIATION"
	SequenceReEngagement  SequenceType = "RE_ENGAGEMENT"
)

// IsValid checks if the type is a known SequenceType value
func (t SequenceType) IsValid() bool {
	switch t {
	case SequenceWelcome, SequenceNurture, SequenceQualification,
		SequenceProposal, SequenceNegotiation, SequenceReEngagement:
		return true
	default:
		return false
	}
}

// SequenceStatus represents the lifecycle state of a follow-up sequence
type SequenceStatus string

const (
	SequenceStatusActive       SequenceStatus = "active"
	SequenceStatusPaused       SequenceStatus = "paused"
	SequenceStatusCompleted    SequenceStatus = "completed"
	SequenceStatusUnsubscribed SequenceStatus = "unsubscribed"
)

// IsTerminal returns true for states the sequence can never leave.
// Unsubscribed is hard-terminal: a sequence must never send again once a
// lead opts out. Completed is reached only via normal step advancement.
func (s SequenceStatus) IsTerminal() bool {
	return s == SequenceStatusCompleted || s == SequenceStatusUnsubscribed
}

// SentEmail is an append-only record of one dispatched sequence email
type SentEmail struct {
	Step       int       `json:"step"`
	TemplateID string    `json:"template_id"`
	Subject    string    `json:"subject"`
	SentDate   time.Time `json:"sent_date"`
	Opened     bool      `json:"opened"`
	Clicked    bool      `json:"clicked"`
	Replied    bool      `json:"replied"`
}

// FollowUpSequence tracks the send schedule of a canned communication
// sequence assigned to a lead.
type FollowUpSequence struct {
	ID            string         `json:"id"`
	LeadID        int64          `json:"lead_id"`
	Email         string         `json:"email"`
	SequenceType  SequenceType   `json:"sequence_type"`
	CurrentStep   int            `json:"current_step"`
	TotalSteps    int            `json:"total_steps"`
	EmailsSent    []SentEmail    `json:"emails_sent"`
	IsActive      bool           `json:"is_active"`
	Status        SequenceStatus `json:"status"`
	NextEmailDate *time.Time     `json:"next_email_date,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Unsubscribe moves the sequence into its hard-terminal state. An opt-out
// is honored from any state and is idempotent.
func (s *FollowUpSequence) Unsubscribe() {
	if s.Status == SequenceStatusUnsubscribed {
		return
	}
	s.Status = SequenceStatusUnsubscribed
	s.IsActive = false
	s.UpdatedAt = time.Now()
}
