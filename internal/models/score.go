package models

// LeadScore extends a lead with its behavioral counters and the fields
// computed by the scoring engine. TotalScore is a pure function of the
// lead attributes and counters; Qualification and Priority are pure
// functions of TotalScore. There is no hidden state.
type LeadScore struct {
	Lead          Lead             `json:"lead"`
	Behavior      BehaviorCounters `json:"behavior"`
	TotalScore    int              `json:"total_score"`
	Qualification Qualification    `json:"qualification"`
	Priority      Priority         `json:"priority"`
}
