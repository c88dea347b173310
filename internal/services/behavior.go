package services

import (
	"math"

	"github.com/brightreach/leadengine/internal/models"
)

// eventWeights maps each event type to its engagement contribution.
// Unrecognized event types carry zero weight; they are never an error.
var eventWeights = map[models.EventType]int{
	models.EventPageView:        1,
	models.EventFormStart:       10,
	models.EventFormProgress:    5,
	models.EventFormComplete:    25,
	models.EventContentDownload: 15,
	models.EventCaseStudyView:   8,
	models.EventCalendarBook:    30,
	models.EventQuoteRequest:    20,
	models.EventChatStart:       12,
}

// engagementScoreCap is a hard ceiling, not a normalization: high-activity
// sessions saturate at 100 rather than scaling.
const engagementScoreCap = 100

// Next-best-action thresholds on conversion probability, inclusive on the
// lower bound of each rung, checked from the highest down.
const (
	actionConsultationThreshold = 80
	actionProposalThreshold     = 60
	actionCaseStudiesThreshold  = 40
	actionEducationThreshold    = 20
)

const (
	ActionScheduleConsultation = "Schedule consultation call"
	ActionSendProposal         = "Send personalized proposal"
	ActionShareCaseStudies     = "Share relevant case studies"
	ActionSendEducation        = "Send educational content"
	ActionNurtureNewsletter    = "Nurture with newsletter"
)

// Tracker derives engagement metrics from recorded site activity. The
// tracker operates purely on event lists and profile snapshots; session
// identification and event capture are the caller's instrumentation.
type Tracker struct{}

// NewTracker creates a new Tracker instance
func NewTracker() *Tracker {
	return &Tracker{}
}

// CalculateEngagementScore sums the fixed per-event-type weights over the
// event list and caps the result at 100.
func (t *Tracker) CalculateEngagementScore(events []models.BehaviorEvent) int {
	score := 0
	for _, event := range events {
		score += eventWeights[event.Type]
	}

	if score > engagementScoreCap {
		return engagementScoreCap
	}
	return score
}

// CalculateConversionProbability blends engagement, form completion rate,
// visit count, and content downloads into a 0-100 estimate. The form
// completion term is skipped entirely when no form was ever started, and
// the visit term only applies to return visitors.
func (t *Tracker) CalculateConversionProbability(profile *models.UserBehaviorProfile) int {
	probability := float64(profile.EngagementScore) * 0.3

	if profile.FormStarts > 0 {
		probability += float64(profile.FormCompletions) / float64(profile.FormStarts) * 40
	}

	if profile.TotalVisits > 1 {
		probability += math.Min(float64(profile.TotalVisits)*5, 20)
	}

	probability += math.Min(float64(len(profile.DownloadedContent))*3, 15)

	rounded := int(math.Round(probability))
	if rounded > 100 {
		return 100
	}
	return rounded
}

// NextBestAction picks a recommended action from the fixed threshold
// ladder on conversion probability.
func (t *Tracker) NextBestAction(profile *models.UserBehaviorProfile) string {
	switch {
	case profile.ConversionProbability >= actionConsultationThreshold:
		return ActionScheduleConsultation
	case profile.ConversionProbability >= actionProposalThreshold:
		return ActionSendProposal
	case profile.ConversionProbability >= actionCaseStudiesThreshold:
		return ActionShareCaseStudies
	case profile.ConversionProbability >= actionEducationThreshold:
		return ActionSendEducation
	default:
		return ActionNurtureNewsletter
	}
}

// ApplyEvents folds a batch of events into the profile's counters and
// recomputes the derived fields. Events are append-only: counters only
// ever grow, they are never retracted.
func (t *Tracker) ApplyEvents(profile *models.UserBehaviorProfile, events []models.BehaviorEvent) *models.UserBehaviorProfile {
	sessions := make(map[string]bool)

	for _, event := range events {
		if event.SessionID != "" && !sessions[event.SessionID] {
			sessions[event.SessionID] = true
		}

		switch event.Type {
		case models.EventPageView:
			profile.TotalVisits++
			t.recordPageVisit(profile, event)
		case models.EventPageLeave:
			profile.TotalTimeOnSite += payloadInt(event.Payload, "time_spent")
			t.recordPageTime(profile, event)
		case models.EventFormStart:
			profile.FormStarts++
		case models.EventFormComplete:
			profile.FormCompletions++
		case models.EventFormAbandon:
			profile.FormAbandons++
		case models.EventChatStart:
			profile.ChatStarts++
		case models.EventContentDownload:
			profile.DownloadedContent = appendUnique(profile.DownloadedContent, payloadString(event.Payload, "content_id"))
		case models.EventCaseStudyView:
			profile.ViewedCaseStudies = appendUnique(profile.ViewedCaseStudies, payloadString(event.Payload, "case_study_id"))
		case models.EventServiceView:
			profile.EngagedServices = appendUnique(profile.EngagedServices, payloadString(event.Payload, "service"))
		}

		if event.Timestamp.After(profile.LastSeen) {
			profile.LastSeen = event.Timestamp
		}
	}

	profile.TotalSessions += len(sessions)

	profile.EngagementScore = capAdd(profile.EngagementScore, t.CalculateEngagementScore(events))
	profile.ConversionProbability = t.CalculateConversionProbability(profile)
	profile.NextBestAction = t.NextBestAction(profile)

	return profile
}

// BuildProfile constructs a fresh behavior profile for an email from its
// full event history.
func (t *Tracker) BuildProfile(email string, events []models.BehaviorEvent) *models.UserBehaviorProfile {
	return t.ApplyEvents(models.NewUserBehaviorProfile(email), events)
}

// recordPageVisit bumps the visit count for the event's page
func (t *Tracker) recordPageVisit(profile *models.UserBehaviorProfile, event models.BehaviorEvent) {
	for i := range profile.MostVisitedPages {
		if profile.MostVisitedPages[i].URL == event.PageURL {
			profile.MostVisitedPages[i].Visits++
			return
		}
	}

	profile.MostVisitedPages = append(profile.MostVisitedPages, models.PageStat{
		URL:    event.PageURL,
		Title:  event.PageTitle,
		Visits: 1,
	})
}

// recordPageTime adds the time-spent payload to the event's page
func (t *Tracker) recordPageTime(profile *models.UserBehaviorProfile, event models.BehaviorEvent) {
	spent := payloadInt(event.Payload, "time_spent")
	for i := range profile.MostVisitedPages {
		if profile.MostVisitedPages[i].URL == event.PageURL {
			profile.MostVisitedPages[i].TimeSpent += spent
			return
		}
	}
}

// capAdd accumulates engagement score across batches without exceeding the cap
func capAdd(current, delta int) int {
	sum := current + delta
	if sum > engagementScoreCap {
		return engagementScoreCap
	}
	return sum
}

// payloadInt extracts an integer value from an event payload
func payloadInt(payload models.JSONB, key string) int {
	if payload == nil {
		return 0
	}

	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// payloadString extracts a string value from an event payload, falling
// back to the empty string
func payloadString(payload models.JSONB, key string) string {
	if payload == nil {
		return ""
	}

	if s, ok := payload[key].(string); ok {
		return s
	}
	return ""
}

// appendUnique appends a non-empty value if not already present
func appendUnique(list []string, value string) []string {
	if value == "" {
		return list
	}
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
