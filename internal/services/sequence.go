package services

import (
	"strings"
	"time"

	"github.com/brightreach/leadengine/internal/models"
	"github.com/google/uuid"
)

// SequenceStep is one templated, timed message in a canned sequence
type SequenceStep struct {
	DelayHours int
	TemplateID string
	Subject    string
	Priority   string
}

// sequenceSteps holds the fixed ordered step lists for the six sequence
// types. These are static configuration, not computed.
var sequenceSteps = map[models.SequenceType][]SequenceStep{
	models.SequenceWelcome: {
		{DelayHours: 0, TemplateID: "welcome_1", Subject: "Welcome aboard, {name}!", Priority: "high"},
		{DelayHours: 48, TemplateID: "welcome_2", Subject: "How {company} can grow faster", Priority: "medium"},
		{DelayHours: 120, TemplateID: "welcome_3", Subject: "Resources picked for {company}", Priority: "low"},
	},
	models.SequenceNurture: {
		{DelayHours: 24, TemplateID: "nurture_1", Subject: "{name}, a marketing idea for {company}", Priority: "medium"},
		{DelayHours: 96, TemplateID: "nurture_2", Subject: "What growing teams like {company} do differently", Priority: "medium"},
		{DelayHours: 168, TemplateID: "nurture_3", Subject: "Case study: results in your industry", Priority: "low"},
		{DelayHours: 336, TemplateID: "nurture_4", Subject: "Still thinking it over, {name}?", Priority: "low"},
	},
	models.SequenceQualification: {
		{DelayHours: 1, TemplateID: "qualification_1", Subject: "Quick question about {company}'s goals", Priority: "high"},
		{DelayHours: 24, TemplateID: "qualification_2", Subject: "{name}, shall we map out a plan?", Priority: "high"},
		{DelayHours: 72, TemplateID: "qualification_3", Subject: "A tailored roadmap for {company}", Priority: "medium"},
	},
	models.SequenceProposal: {
		{DelayHours: 2, TemplateID: "proposal_1", Subject: "Your proposal is ready, {name}", Priority: "high"},
		{DelayHours: 48, TemplateID: "proposal_2", Subject: "Questions about the proposal for {company}?", Priority: "high"},
		{DelayHours: 120, TemplateID: "proposal_3", Subject: "References from clients like {company}", Priority: "medium"},
	},
	models.SequenceNegotiation: {
		{DelayHours: 4, TemplateID: "negotiation_1", Subject: "Next steps for {company}", Priority: "high"},
		{DelayHours: 72, TemplateID: "negotiation_2", Subject: "Let's finalize the details, {name}", Priority: "high"},
	},
	models.SequenceReEngagement: {
		{DelayHours: 0, TemplateID: "reengagement_1", Subject: "{name}, it's been a while", Priority: "low"},
		{DelayHours: 168, TemplateID: "reengagement_2", Subject: "New results we've delivered since we last spoke", Priority: "low"},
		{DelayHours: 336, TemplateID: "reengagement_3", Subject: "Should we close your file, {name}?", Priority: "low"},
	},
}

// stageSequences maps a profiling stage to its fallback sequence type
var stageSequences = map[models.ProfileStage]models.SequenceType{
	models.StageInitial:       models.SequenceWelcome,
	models.StageEngagement:    models.SequenceNurture,
	models.StageQualification: models.SequenceQualification,
	models.StageProposal:      models.SequenceProposal,
	models.StageNegotiation:   models.SequenceNegotiation,
}

// Guard against over-emailing leads that are already highly engaged past
// the early sequence steps.
const (
	engagedGuardScore = 80
	engagedGuardStep  = 2
)

// replyCooldown suppresses sends for a day after a lead replies
const replyCooldown = 24 * time.Hour

// NextEmail describes the upcoming step of a sequence. Step is 1-indexed
// for presentation; internally steps are 0-indexed.
type NextEmail struct {
	Step       int
	DelayHours int
	TemplateID string
	Subject    string
	Priority   string
}

// SequenceMetrics summarizes engagement with a sequence's sent emails
type SequenceMetrics struct {
	OpenRate       float64 `json:"open_rate"`
	ClickRate      float64 `json:"click_rate"`
	ReplyRate      float64 `json:"reply_rate"`
	ConversionRate float64 `json:"conversion_rate"`
}

// Sequencer selects and manages follow-up sequences
type Sequencer struct{}

// NewSequencer creates a new Sequencer instance
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// DetermineSequenceType chooses a sequence for a lead. Qualification-tier
// rules take precedence over stage-based rules: HOT leads always get the
// QUALIFICATION sequence and WARM leads always get NURTURE, regardless of
// the profile's current stage.
func (s *Sequencer) DetermineSequenceType(score models.LeadScore, profile *models.ProgressiveProfile) models.SequenceType {
	switch score.Qualification {
	case models.QualificationHot:
		return models.SequenceQualification
	case models.QualificationWarm:
		return models.SequenceNurture
	}

	if profile != nil {
		if seq, ok := stageSequences[profile.CurrentStage]; ok {
			return seq
		}
	}

	return models.SequenceWelcome
}

// NewSequence creates an active sequence of the given type for a lead
func (s *Sequencer) NewSequence(leadID int64, email string, seqType models.SequenceType) *models.FollowUpSequence {
	now := time.Now()
	return &models.FollowUpSequence{
		ID:           uuid.New().String(),
		LeadID:       leadID,
		Email:        email,
		SequenceType: seqType,
		CurrentStep:  0,
		TotalSteps:   len(sequenceSteps[seqType]),
		EmailsSent:   []models.SentEmail{},
		IsActive:     true,
		Status:       models.SequenceStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Steps returns the fixed step list for a sequence type
func (s *Sequencer) Steps(seqType models.SequenceType) []SequenceStep {
	return sequenceSteps[seqType]
}

// PersonalizeEmailContent replaces every {key} token with its value from
// data by global substitution. Tokens with no matching key are left
// untouched, never stripped.
func (s *Sequencer) PersonalizeEmailContent(template string, data map[string]string) string {
	personalized := template
	for key, value := range data {
		personalized = strings.ReplaceAll(personalized, "{"+key+"}", value)
	}
	return personalized
}

// ShouldSendEmail decides whether the sequence's next email may go out
// now. The engaged-lead guard (engagement over 80 past step 2) is a
// deliberate rule to avoid over-emailing leads that are already talking
// to us.
func (s *Sequencer) ShouldSendEmail(sequence *models.FollowUpSequence, engagementScore int, now time.Time) bool {
	if sequence.Status == models.SequenceStatusUnsubscribed {
		return false
	}

	if !sequence.IsActive || sequence.Status != models.SequenceStatusActive {
		return false
	}

	if sequence.NextEmailDate != nil && sequence.NextEmailDate.After(now) {
		return false
	}

	if engagementScore > engagedGuardScore && sequence.CurrentStep > engagedGuardStep {
		return false
	}

	for _, sent := range sequence.EmailsSent {
		if sent.Replied && now.Sub(sent.SentDate) < replyCooldown {
			return false
		}
	}

	return true
}

// GetNextEmail returns the step at the sequence's current position, or
// nil when every step has been sent.
func (s *Sequencer) GetNextEmail(sequence *models.FollowUpSequence) *NextEmail {
	steps := sequenceSteps[sequence.SequenceType]
	if sequence.CurrentStep >= len(steps) {
		return nil
	}

	step := steps[sequence.CurrentStep]
	return &NextEmail{
		Step:       sequence.CurrentStep + 1,
		DelayHours: step.DelayHours,
		TemplateID: step.TemplateID,
		Subject:    step.Subject,
		Priority:   step.Priority,
	}
}

// UpdateSequenceAfterEmail records a sent email and advances the
// sequence by one step. Reaching the final step completes the sequence;
// completed is never set directly by any other path.
func (s *Sequencer) UpdateSequenceAfterEmail(sequence *models.FollowUpSequence, templateID, subject string, sentAt time.Time) error {
	if sequence.Status.IsTerminal() {
		return models.NewSequenceStateError(sequence.ID, sequence.Status, "advance")
	}

	sequence.EmailsSent = append(sequence.EmailsSent, models.SentEmail{
		Step:       sequence.CurrentStep + 1,
		TemplateID: templateID,
		Subject:    subject,
		SentDate:   sentAt,
		Opened:     false,
		Clicked:    false,
		Replied:    false,
	})

	sequence.CurrentStep++
	sequence.UpdatedAt = sentAt

	if sequence.CurrentStep >= sequence.TotalSteps {
		sequence.IsActive = false
		sequence.Status = models.SequenceStatusCompleted
		sequence.NextEmailDate = nil
		return nil
	}

	steps := sequenceSteps[sequence.SequenceType]
	if sequence.CurrentStep < len(steps) {
		next := sentAt.Add(time.Duration(steps[sequence.CurrentStep].DelayHours) * time.Hour)
		sequence.NextEmailDate = &next
	}

	return nil
}

// PauseSequence suspends an active sequence, typically on a reply.
// Pausing a completed or unsubscribed sequence is a domain error.
func (s *Sequencer) PauseSequence(sequence *models.FollowUpSequence) error {
	if sequence.Status.IsTerminal() {
		return models.NewSequenceStateError(sequence.ID, sequence.Status, "pause")
	}

	sequence.Status = models.SequenceStatusPaused
	sequence.IsActive = false
	sequence.UpdatedAt = time.Now()
	return nil
}

// ResumeSequence reactivates a paused sequence. Resuming a completed or
// unsubscribed sequence is rejected rather than silently mutating a
// terminal state.
func (s *Sequencer) ResumeSequence(sequence *models.FollowUpSequence) error {
	if sequence.Status.IsTerminal() {
		return models.NewSequenceStateError(sequence.ID, sequence.Status, "resume")
	}

	sequence.Status = models.SequenceStatusActive
	sequence.IsActive = true
	sequence.UpdatedAt = time.Now()
	return nil
}

// GetSequenceMetrics computes engagement percentages over the sent
// emails. All rates are zero when nothing was sent. The conversion rate
// divides the completion flag by the total email count.
func (s *Sequencer) GetSequenceMetrics(sequence *models.FollowUpSequence) SequenceMetrics {
	total := len(sequence.EmailsSent)
	if total == 0 {
		return SequenceMetrics{}
	}

	opened, clicked, replied := 0, 0, 0
	for _, sent := range sequence.EmailsSent {
		if sent.Opened {
			opened++
		}
		if sent.Clicked {
			clicked++
		}
		if sent.Replied {
			replied++
		}
	}

	completed := 0.0
	if sequence.Status == models.SequenceStatusCompleted {
		completed = 1.0
	}

	return SequenceMetrics{
		OpenRate:       float64(opened) / float64(total) * 100,
		ClickRate:      float64(clicked) / float64(total) * 100,
		ReplyRate:      float64(replied) / float64(total) * 100,
		ConversionRate: completed / float64(total) * 100,
	}
}
