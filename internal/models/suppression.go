package models

import "time"

// Suppression reasons
const (
	SuppressionReasonBounce      = "bounce"
	SuppressionReasonComplaint   = "complaint"
	SuppressionReasonUnsubscribe = "unsubscribe"
	SuppressionReasonManual      = "manual"
)

// Suppression is a standing do-not-email instruction for one contact,
// independent of any campaign. A suppressed contact's enrollments still
// advance so they eventually complete.
type Suppression struct {
	ID        string    `json:"id"`
	ContactID string    `json:"contact_id"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
