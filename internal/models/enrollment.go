package models

import "time"

// Enrollment statuses. "sending" is a transient claim marker held by the
// tick engine while it processes a row; it is never left behind after a
// tick completes.
const (
	EnrollmentStatusActive    = "active"
	EnrollmentStatusSending   = "sending"
	EnrollmentStatusCompleted = "completed"
	EnrollmentStatusPaused    = "paused"
	EnrollmentStatusError     = "error"
)

// Enrollment tracks one contact's progress through one campaign. A contact
// can be enrolled at most once per campaign. Completed rows are kept as an
// audit trail, never deleted.
type Enrollment struct {
	ID            string     `json:"id"`
	CampaignID    string     `json:"campaign_id"`
	ContactID     string     `json:"contact_id"`
	Status        string     `json:"status"`
	NextStepOrder int        `json:"next_step_order"`
	NextRunAt     time.Time  `json:"next_run_at"`
	LastSentAt    *time.Time `json:"last_sent_at,omitempty"`
	VariantJSON   string     `json:"variant_json,omitempty"`
	DataJSON      string     `json:"data_json,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// EnrollmentListFilter for filtering enrollments
type EnrollmentListFilter struct {
	CampaignID string
	ContactID  string
	Status     string
	Limit      int
	Offset     int
}
