package models

import "time"

// Campaign statuses
const (
	CampaignStatusActive   = "active"
	CampaignStatusArchived = "archived"
)

// Campaign represents a multi-step drip campaign
type Campaign struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Step is one email in a campaign sequence. DelayMinutes is measured from
// the previous step, or from enrollment time for the first step. SubjectB,
// BodyB and WeightB describe the optional B variant; WeightB is the
// percentage chance (0-100) of the B variant being chosen per send.
type Step struct {
	ID           string    `json:"id"`
	CampaignID   string    `json:"campaign_id"`
	StepOrder    int       `json:"step_order"`
	DelayMinutes int       `json:"delay_minutes"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	SubjectB     string    `json:"subject_b,omitempty"`
	BodyB        string    `json:"body_b,omitempty"`
	WeightB      int       `json:"weight_b"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasVariantB reports whether the step carries alternate content
func (s *Step) HasVariantB() bool {
	return s.SubjectB != "" || s.BodyB != ""
}

// CampaignWithStats includes campaign statistics
type CampaignWithStats struct {
	Campaign
	StepCount       int `json:"step_count"`
	EnrollmentCount int `json:"enrollment_count"`
}

// CampaignListFilter for filtering campaigns
type CampaignListFilter struct {
	Search string
	Status string
	Limit  int
	Offset int
}
