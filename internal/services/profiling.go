package services

import (
	"math"
	"strings"
	"time"

	"github.com/brightreach/leadengine/internal/models"
)

// stageFields lists the fields collected at each profiling stage. The
// completeness calculation spans every stage; advancement eligibility
// looks only at the current stage.
var stageFields = map[models.ProfileStage][]string{
	models.StageInitial:       {"email", "name", "company"},
	models.StageEngagement:    {"role", "phone", "website"},
	models.StageQualification: {"budget", "timeline", "needs"},
	models.StageProposal:      {"decision_makers", "current_challenges", "success_metrics"},
	models.StageNegotiation:   {"contract_preferences", "start_date", "payment_terms"},
}

// contentRecommendations is a fixed lookup of content to offer per stage
var contentRecommendations = map[models.ProfileStage][]string{
	models.StageInitial: {
		"Marketing strategy starter guide",
		"Agency services overview",
	},
	models.StageEngagement: {
		"Industry benchmark report",
		"Client case study library",
		"ROI calculator",
	},
	models.StageQualification: {
		"Pricing and engagement models",
		"Service comparison matrix",
	},
	models.StageProposal: {
		"Sample proposal walkthrough",
		"References and testimonials",
	},
	models.StageNegotiation: {
		"Onboarding roadmap",
		"Contract and terms overview",
	},
}

// followUpTimings maps each stage to a contact-timing bucket
var followUpTimings = map[models.ProfileStage]string{
	models.StageInitial:       "within 24 hours",
	models.StageEngagement:    "within 1 week",
	models.StageQualification: "within 24 hours",
	models.StageProposal:      "immediate",
	models.StageNegotiation:   "immediate",
}

// Profiler implements the five-stage progressive profiling state machine
type Profiler struct{}

// NewProfiler creates a new Profiler instance
func NewProfiler() *Profiler {
	return &Profiler{}
}

// CalculateProfileCompleteness returns the percentage of fields filled
// across ALL five stages, rounded. Completeness reflects total-journey
// progress, not just current-stage progress.
func (p *Profiler) CalculateProfileCompleteness(profile *models.ProgressiveProfile) int {
	totalFields := 0
	filled := 0

	for _, stage := range models.StageOrder {
		for _, field := range stageFields[stage] {
			totalFields++
			if profile.Fields[field] != "" {
				filled++
			}
		}
	}

	if totalFields == 0 {
		return 0
	}

	return int(math.Round(float64(filled) / float64(totalFields) * 100))
}

// NextQuestions returns the current-stage fields still missing from the
// profile. Fields from other stages are never included.
func (p *Profiler) NextQuestions(profile *models.ProgressiveProfile) []string {
	missing := []string{}
	for _, field := range stageFields[profile.CurrentStage] {
		if profile.Fields[field] == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// CanAdvanceStage reports whether every field required by the current
// stage is present and non-empty. Later-stage fields are irrelevant.
func (p *Profiler) CanAdvanceStage(profile *models.ProgressiveProfile) bool {
	for _, field := range stageFields[profile.CurrentStage] {
		if profile.Fields[field] == "" {
			return false
		}
	}
	return true
}

// AdvanceStage returns a copy advanced to the next stage when eligible.
// When ineligible, or already at the last stage, the input profile is
// returned unchanged. Advancement is one stage at a time, never skipping,
// never regressing.
func (p *Profiler) AdvanceStage(profile *models.ProgressiveProfile) *models.ProgressiveProfile {
	if !p.CanAdvanceStage(profile) {
		return profile
	}

	next, ok := profile.CurrentStage.Next()
	if !ok {
		return profile
	}

	advanced := profile.Clone()
	advanced.CurrentStage = next
	advanced.Completeness = p.CalculateProfileCompleteness(advanced)
	advanced.LastUpdated = time.Now()
	return advanced
}

// MergeLead copies a validated lead's attributes into the profile's field
// map and refreshes completeness. Existing values are only overwritten by
// non-empty submissions.
func (p *Profiler) MergeLead(profile *models.ProgressiveProfile, lead models.Lead) *models.ProgressiveProfile {
	merged := profile.Clone()

	setIfPresent := func(field, value string) {
		if value != "" {
			merged.Fields[field] = value
		}
	}

	setIfPresent("email", lead.Email)
	setIfPresent("name", lead.Name)
	setIfPresent("company", lead.Company)
	setIfPresent("role", lead.Role)
	setIfPresent("phone", lead.Phone)
	setIfPresent("website", lead.CurrentSite)
	setIfPresent("budget", lead.Budget)
	setIfPresent("timeline", lead.Timeline)
	if len(lead.Needs) > 0 {
		merged.Fields["needs"] = strings.Join(lead.Needs, ", ")
	}

	merged.Completeness = p.CalculateProfileCompleteness(merged)
	merged.LastUpdated = time.Now()
	return merged
}

// ContentRecommendations returns the fixed content list for the profile's
// current stage
func (p *Profiler) ContentRecommendations(profile *models.ProgressiveProfile) []string {
	return contentRecommendations[profile.CurrentStage]
}

// FollowUpTiming returns the contact-timing bucket for the profile's
// current stage
func (p *Profiler) FollowUpTiming(profile *models.ProgressiveProfile) string {
	return followUpTimings[profile.CurrentStage]
}
