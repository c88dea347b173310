package models

import "time"

// EventType identifies a discrete site-activity event. The vocabulary is
// fixed; unrecognized types carry zero weight in scoring rather than
// being rejected.
type EventType string

const (
	EventPageView        EventType = "page_view"
	EventPageLeave       EventType = "page_leave"
	EventScrollMilestone EventType = "scroll_milestone"
	EventFormStart       EventType = "form_start"
	EventFormProgress    EventType = "form_progress"
	EventFormComplete    EventType = "form_complete"
	EventFormAbandon     EventType = "form_abandon"
	EventContentDownload EventType = "content_download"
	EventCaseStudyView   EventType = "case_study_view"
	EventCalendarBook    EventType = "calendar_book"
	EventQuoteRequest    EventType = "quote_request"
	EventChatStart       EventType = "chat_start"
	EventServiceView     EventType = "service_view"
)

// BehaviorEvent is a single timestamped activity record captured on the
// website and shipped to the event intake endpoint.
type BehaviorEvent struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	PageURL   string    `json:"page_url"`
	PageTitle string    `json:"page_title,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   JSONB     `json:"payload,omitempty"`
}

// PageStat aggregates visits to a single page
type PageStat struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Visits    int    `json:"visits"`
	TimeSpent int    `json:"time_spent"`
}

// UserBehaviorProfile accumulates a lead's site activity, keyed by email.
// It is built from an append-only event list: events are never retracted,
// so the derived fields only ever reflect more activity, not less.
type UserBehaviorProfile struct {
	Email                 string     `json:"email"`
	TotalVisits           int        `json:"total_visits"`
	TotalSessions         int        `json:"total_sessions"`
	TotalTimeOnSite       int        `json:"total_time_on_site"`
	MostVisitedPages      []PageStat `json:"most_visited_pages"`
	DownloadedContent     []string   `json:"downloaded_content"`
	ViewedCaseStudies     []string   `json:"viewed_case_studies"`
	EngagedServices       []string   `json:"engaged_services"`
	FormStarts            int        `json:"form_starts"`
	FormCompletions       int        `json:"form_completions"`
	FormAbandons          int        `json:"form_abandons"`
	ChatStarts            int        `json:"chat_starts"`
	EngagementScore       int        `json:"engagement_score"`
	ConversionProbability int        `json:"conversion_probability"`
	NextBestAction        string     `json:"next_best_action"`
	LastSeen              time.Time  `json:"last_seen"`
}

// NewUserBehaviorProfile creates an empty behavior profile for an email
func NewUserBehaviorProfile(email string) *UserBehaviorProfile {
	return &UserBehaviorProfile{
		Email:             email,
		MostVisitedPages:  []PageStat{},
		DownloadedContent: []string{},
		ViewedCaseStudies: []string{},
		EngagedServices:   []string{},
	}
}

// Counters projects the behavior profile onto the scoring engine's
// behavioral counter shape.
func (p *UserBehaviorProfile) Counters() BehaviorCounters {
	pages := make([]string, 0, len(p.MostVisitedPages))
	for _, ps := range p.MostVisitedPages {
		pages = append(pages, ps.URL)
	}

	returnVisits := 0
	if p.TotalVisits > 1 {
		returnVisits = p.TotalVisits - 1
	}

	return BehaviorCounters{
		PageViews:        pages,
		TimeOnSite:       p.TotalTimeOnSite,
		ReturnVisits:     returnVisits,
		ContentDownloads: append([]string{}, p.DownloadedContent...),
		ChatEngagements:  p.ChatStarts,
	}
}
