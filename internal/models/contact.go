package models

import "time"

// Contact is a person tracked by the outreach dashboard
type Contact struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	LinkedinURL string    `json:"linkedin_url,omitempty"`
	Source      string    `json:"source,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ContactListFilter for filtering contacts
type ContactListFilter struct {
	Search string
	Limit  int
	Offset int
}
