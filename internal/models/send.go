package models

import "time"

// Send statuses. queued and sent are written by the tick engine; the rest
// arrive later via provider delivery webhooks.
const (
	SendStatusQueued     = "queued"
	SendStatusSent       = "sent"
	SendStatusDelivered  = "delivered"
	SendStatusOpened     = "opened"
	SendStatusClicked    = "clicked"
	SendStatusBounced    = "bounced"
	SendStatusComplained = "complained"
	SendStatusFailed     = "failed"
)

// Send is one append-only send-log row: a single attempted email for one
// contact at one campaign step
type Send struct {
	ID         string    `json:"id"`
	ContactID  string    `json:"contact_id"`
	CampaignID string    `json:"campaign_id"`
	StepOrder  int       `json:"step_order"`
	Provider   string    `json:"provider"`
	ProviderID string    `json:"provider_id,omitempty"`
	Status     string    `json:"status"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ToEmail    string    `json:"to_email"`
	MetaJSON   string    `json:"meta_json,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// SendListFilter for filtering the send log
type SendListFilter struct {
	ContactID  string
	CampaignID string
	Status     string
	Limit      int
	Offset     int
}
