package services

import (
	"github.com/brightreach/leadengine/internal/models"
)

// Qualifier runs the full qualification pipeline for a validated lead:
// score, merge into the progressive profile, combine with the behavior
// snapshot, and select a follow-up sequence. It is a stateless,
// synchronous composition of the pure services; persistence and delivery
// belong to the caller.
type Qualifier struct {
	scorer    *Scorer
	profiler  *Profiler
	tracker   *Tracker
	sequencer *Sequencer
}

// NewQualifier creates a Qualifier wired with fresh service instances
func NewQualifier() *Qualifier {
	return &Qualifier{
		scorer:    NewScorer(),
		profiler:  NewProfiler(),
		tracker:   NewTracker(),
		sequencer: NewSequencer(),
	}
}

// Scorer exposes the scoring engine
func (q *Qualifier) Scorer() *Scorer { return q.scorer }

// Profiler exposes the progressive profiling state machine
func (q *Qualifier) Profiler() *Profiler { return q.profiler }

// Tracker exposes the behavioral engagement tracker
func (q *Qualifier) Tracker() *Tracker { return q.tracker }

// Sequencer exposes the follow-up sequence selector
func (q *Qualifier) Sequencer() *Sequencer { return q.sequencer }

// Qualify runs validate-downstream pipeline stages for an already
// validated lead. The profile may be nil for a first contact, in which
// case one is created at the initial stage; the behavior profile may be
// nil when the lead has no recorded site activity.
func (q *Qualifier) Qualify(lead models.Lead, profile *models.ProgressiveProfile, behavior *models.UserBehaviorProfile) (*models.EnhancedLead, *models.ProgressiveProfile) {
	counters := models.BehaviorCounters{}
	if behavior != nil {
		counters = behavior.Counters()
	}

	score := q.scorer.CalculateLeadScore(lead, counters)

	if profile == nil {
		profile = models.NewProgressiveProfile(lead.Email)
	}
	merged := q.profiler.MergeLead(profile, lead)
	merged = q.profiler.AdvanceStage(merged)

	sequenceType := q.sequencer.DetermineSequenceType(score, merged)

	enhanced := &models.EnhancedLead{
		Lead:               lead,
		Score:              score,
		Profile:            merged,
		Behavior:           behavior,
		SequenceType:       sequenceType,
		RecommendedActions: q.scorer.RecommendedActions(score),
		EstimatedDealValue: q.scorer.EstimatedDealValue(score),
	}

	return enhanced, merged
}
