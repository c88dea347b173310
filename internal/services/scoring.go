package services

import (
	"math"

	"github.com/brightreach/leadengine/internal/models"
)

// Weight tables for the scoring engine. The tables are allowed to be
// incomplete relative to the website's option lists: a value with no
// entry contributes zero, it never errors. This fail-open behavior is
// intentional, do not tighten it into validation.

// roleWeights maps a contact's role to a seniority weight (30-100)
var roleWeights = map[string]float64{
	"CEO/Founder":        100,
	"CMO":                90,
	"VP of Marketing":    85,
	"Marketing Director": 80,
	"Head of Growth":     75,
	"Marketing Manager":  65,
	"Product Manager":    55,
	"Consultant":         45,
	"Other":              30,
}

// budgetWeights maps a budget bracket to a weight (20-100), with a
// neutral 50 for budgets still to be discussed
var budgetWeights = map[string]float64{
	"$100,000+":           100,
	"$50,000 - $100,000":  85,
	"$25,000 - $50,000":   70,
	"$10,000 - $25,000":   55,
	"$5,000 - $10,000":    35,
	"Under $5,000":        20,
	"To be discussed":     50,
}

// timelineWeights maps an engagement timeline to an urgency weight (30-100)
var timelineWeights = map[string]float64{
	"ASAP (within 30 days)": 100,
	"Within 3 months":       80,
	"Within 6 months":       60,
	"Within a year":         45,
	"Just exploring options": 30,
}

// needWeights maps a requested service to a complexity weight (40-90).
// Multiple selected needs contribute their average, not their sum.
var needWeights = map[string]float64{
	"Strategic Partnership Development": 90,
	"Full-Service Marketing":            85,
	"Brand Strategy & Positioning":      80,
	"Marketing Automation":              75,
	"Paid Advertising":                  70,
	"SEO & Content Marketing":           65,
	"Web Design & Development":          60,
	"Social Media Management":           55,
	"Email Marketing":                   50,
	"Not sure yet":                      40,
}

// geographyWeights maps a target market scope to a weight (40-100), with
// a neutral 50 for leads that are not sure yet
var geographyWeights = map[string]float64{
	"Global":        100,
	"North America": 85,
	"Europe":        80,
	"National":      70,
	"Regional":      55,
	"Local":         40,
	"Not sure":      50,
}

// Behavioral bonuses, each applied at most once regardless of magnitude
const (
	bonusPageViews        = 10
	bonusReturnVisits     = 25
	bonusContentDownloads = 20
	bonusChatEngagements  = 30
)

// Qualification thresholds, checked from highest to lowest
const (
	hotThreshold  = 80
	warmThreshold = 60
	coldThreshold = 40
)

// Scorer computes lead scores from validated lead attributes and
// behavioral counters. All methods are pure functions.
type Scorer struct{}

// NewScorer creates a new Scorer instance
func NewScorer() *Scorer {
	return &Scorer{}
}

// CalculateLeadScore maps lead attributes plus behavioral counters to a
// total score, a qualification tier, and a priority tier. Deterministic:
// identical inputs always produce identical outputs.
func (s *Scorer) CalculateLeadScore(lead models.Lead, behavior models.BehaviorCounters) models.LeadScore {
	total := 0.0

	total += roleWeights[lead.Role]
	total += budgetWeights[lead.Budget]
	total += timelineWeights[lead.Timeline]
	total += averageNeedWeight(lead.Needs)
	total += geographyWeights[lead.Geography]

	if len(behavior.PageViews) > 0 {
		total += bonusPageViews
	}
	if behavior.ReturnVisits > 0 {
		total += bonusReturnVisits
	}
	if len(behavior.ContentDownloads) > 0 {
		total += bonusContentDownloads
	}
	if behavior.ChatEngagements > 0 {
		total += bonusChatEngagements
	}

	totalScore := int(math.Round(total))
	qualification := QualificationForScore(totalScore)

	return models.LeadScore{
		Lead:          lead,
		Behavior:      behavior,
		TotalScore:    totalScore,
		Qualification: qualification,
		Priority:      PriorityForQualification(qualification),
	}
}

// averageNeedWeight returns the average complexity weight of the selected
// needs. Needs missing from the table average in as zero; an empty
// selection contributes nothing.
func averageNeedWeight(needs []string) float64 {
	if len(needs) == 0 {
		return 0
	}

	sum := 0.0
	for _, need := range needs {
		sum += needWeights[need]
	}

	return sum / float64(len(needs))
}

// QualificationForScore buckets a total score into a qualification tier.
// The total score is unbounded above; only the engagement score carries a
// hard cap.
func QualificationForScore(totalScore int) models.Qualification {
	switch {
	case totalScore >= hotThreshold:
		return models.QualificationHot
	case totalScore >= warmThreshold:
		return models.QualificationWarm
	case totalScore >= coldThreshold:
		return models.QualificationCold
	default:
		return models.QualificationUnqualified
	}
}

// PriorityForQualification derives the sales priority from the
// qualification tier. COLD and UNQUALIFIED both map to LOW; the mapping
// is deliberately many-to-one.
func PriorityForQualification(q models.Qualification) models.Priority {
	switch q {
	case models.QualificationHot:
		return models.PriorityHigh
	case models.QualificationWarm:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// recommendedActions is a fixed lookup of next steps per qualification tier
var recommendedActions = map[models.Qualification][]string{
	models.QualificationHot: {
		"Call within 1 hour",
		"Send calendar link for strategy session",
		"Prepare custom proposal",
		"Assign senior account strategist",
	},
	models.QualificationWarm: {
		"Call within 24 hours",
		"Send relevant case studies",
		"Invite to upcoming webinar",
		"Add to nurture sequence",
	},
	models.QualificationCold: {
		"Send educational content series",
		"Add to monthly newsletter",
		"Re-score after next site visit",
	},
	models.QualificationUnqualified: {
		"Add to newsletter",
		"Revisit in 90 days",
	},
}

// RecommendedActions returns the ordered action list for a lead score
func (s *Scorer) RecommendedActions(score models.LeadScore) []string {
	return recommendedActions[score.Qualification]
}

// estimatedDealValues is a fixed lookup of deal value ranges per tier
var estimatedDealValues = map[models.Qualification]string{
	models.QualificationHot:         "$50,000 - $250,000",
	models.QualificationWarm:        "$15,000 - $50,000",
	models.QualificationCold:        "$5,000 - $15,000",
	models.QualificationUnqualified: "Under $5,000",
}

// EstimatedDealValue returns the deal value range for a lead score
func (s *Scorer) EstimatedDealValue(score models.LeadScore) string {
	return estimatedDealValues[score.Qualification]
}
