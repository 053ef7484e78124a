package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/signalcrest/outreach/internal/models"
)

type SuppressionRepository struct {
	db *sql.DB
}

func NewSuppressionRepository(db *sql.DB) *SuppressionRepository {
	return &SuppressionRepository{db: db}
}

// Add suppresses a contact. Adding an already-suppressed contact is a
// no-op; the first recorded reason stands.
func (r *SuppressionRepository) Add(s *models.Suppression) error {
	s.ID = uuid.New().String()
	s.CreatedAt = time.Now()

	_, err := r.db.Exec(`
		INSERT INTO marketing_suppressions (id, contact_id, reason, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(contact_id) DO NOTHING`,
		s.ID, s.ContactID, s.Reason, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add suppression: %w", err)
	}
	return nil
}

// IsSuppressed reports whether a contact has a standing do-not-email row
func (r *SuppressionRepository) IsSuppressed(contactID string) (bool, error) {
	var one int
	err := r.db.QueryRow("SELECT 1 FROM marketing_suppressions WHERE contact_id = ?", contactID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns all suppressions, newest first
func (r *SuppressionRepository) List() ([]models.Suppression, error) {
	rows, err := r.db.Query(`
		SELECT id, contact_id, reason, created_at
		FROM marketing_suppressions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppressions := []models.Suppression{}
	for rows.Next() {
		var s models.Suppression
		if err := rows.Scan(&s.ID, &s.ContactID, &s.Reason, &s.CreatedAt); err != nil {
			return nil, err
		}
		suppressions = append(suppressions, s)
	}
	return suppressions, rows.Err()
}

// Remove lifts a contact's suppression
func (r *SuppressionRepository) Remove(contactID string) error {
	_, err := r.db.Exec("DELETE FROM marketing_suppressions WHERE contact_id = ?", contactID)
	return err
}
