package models

// LeadStatus represents the current state of a lead in the qualification pipeline
type LeadStatus string

const (
	// LeadStatusReceived indicates the submission has been accepted and queued for qualification
	LeadStatusReceived LeadStatus = "RECEIVED"

	// LeadStatusRejected indicates the submission failed input validation
	LeadStatusRejected LeadStatus = "REJECTED"

	// LeadStatusQualified indicates the lead has been scored and assigned a follow-up sequence
	LeadStatusQualified LeadStatus = "QUALIFIED"

	// LeadStatusNotified indicates the enhanced lead bundle was delivered to the sales notification endpoint
	LeadStatusNotified LeadStatus = "NOTIFIED"
)

// IsValid checks if the status is a valid LeadStatus value
func (s LeadStatus) IsValid() bool {
	switch s {
	case LeadStatusReceived, LeadStatusRejected, LeadStatusQualified, LeadStatusNotified:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the status represents a terminal state
func (s LeadStatus) IsTerminal() bool {
	return s == LeadStatusRejected || s == LeadStatusNotified
}

// Qualification is the tier a lead falls into based on its total score
type Qualification string

const (
	QualificationHot         Qualification = "HOT"
	QualificationWarm        Qualification = "WARM"
	QualificationCold        Qualification = "COLD"
	QualificationUnqualified Qualification = "UNQUALIFIED"
)

// Priority is the sales-priority tier derived from the qualification
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)
