package models

import "time"

// ProfileStage represents one of the five ordered data-collection stages
type ProfileStage string

const (
	StageInitial       ProfileStage = "initial"
	StageEngagement    ProfileStage = "engagement"
	StageQualification ProfileStage = "qualification"
	StageProposal      ProfileStage = "proposal"
	StageNegotiation   ProfileStage = "negotiation"
)

// StageOrder is the fixed linear progression of profiling stages.
// Advancement is strictly sequential and one-directional; there is no
// mechanism to skip stages and no regression to an earlier stage.
var StageOrder = []ProfileStage{
	StageInitial,
	StageEngagement,
	StageQualification,
	StageProposal,
	StageNegotiation,
}

// IsValid checks if the stage is a known ProfileStage value
func (s ProfileStage) IsValid() bool {
	for _, stage := range StageOrder {
		if s == stage {
			return true
		}
	}
	return false
}

// Index returns the position of the stage in the fixed order, or -1
func (s ProfileStage) Index() int {
	for i, stage := range StageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

// Next returns the following stage and true, or the same stage and false
// when already at the last stage
func (s ProfileStage) Next() (ProfileStage, bool) {
	idx := s.Index()
	if idx < 0 || idx >= len(StageOrder)-1 {
		return s, false
	}
	return StageOrder[idx+1], true
}

// ProgressiveProfile tracks the incremental data collection for a single
// lead, keyed by email. Fields holds every collected value regardless of
// which stage it belongs to; Completeness is recomputed from Fields on
// every change, never cached incrementally.
type ProgressiveProfile struct {
	Email        string            `json:"email"`
	Fields       map[string]string `json:"fields"`
	CurrentStage ProfileStage      `json:"current_stage"`
	Completeness int               `json:"profile_completeness"`
	LastUpdated  time.Time         `json:"last_updated"`
}

// NewProgressiveProfile creates a profile at the initial stage
func NewProgressiveProfile(email string) *ProgressiveProfile {
	return &ProgressiveProfile{
		Email:        email,
		Fields:       make(map[string]string),
		CurrentStage: StageInitial,
		LastUpdated:  time.Now(),
	}
}

// Clone returns a deep copy of the profile. AdvanceStage operates on
// copies so the caller's profile is never mutated in place.
func (p *ProgressiveProfile) Clone() *ProgressiveProfile {
	fields := make(map[string]string, len(p.Fields))
	for k, v := range p.Fields {
		fields[k] = v
	}
	return &ProgressiveProfile{
		Email:        p.Email,
		Fields:       fields,
		CurrentStage: p.CurrentStage,
		Completeness: p.Completeness,
		LastUpdated:  p.LastUpdated,
	}
}
