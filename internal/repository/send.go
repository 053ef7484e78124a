package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/signalcrest/outreach/internal/models"
)

type SendRepository struct {
	db *sql.DB
}

func NewSendRepository(db *sql.DB) *SendRepository {
	return &SendRepository{db: db}
}

// Create appends a send-log row. Rows are never mutated by the scheduler;
// only provider webhooks update status afterwards.
func (r *SendRepository) Create(s *models.Send) error {
	s.ID = uuid.New().String()
	s.CreatedAt = time.Now()

	_, err := r.db.Exec(`
		INSERT INTO marketing_sends (id, contact_id, campaign_id, step_order, provider, provider_id, status, subject, body, to_email, meta_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ContactID, s.CampaignID, s.StepOrder, s.Provider, s.ProviderID, s.Status, s.Subject, s.Body, s.ToEmail, s.MetaJSON, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record send: %w", err)
	}
	return nil
}

// List returns send-log rows matching the filter, newest first
func (r *SendRepository) List(filter models.SendListFilter) ([]models.Send, int, error) {
	countQuery := "SELECT COUNT(*) FROM marketing_sends WHERE 1=1"
	args := []any{}

	if filter.ContactID != "" {
		countQuery += " AND contact_id = ?"
		args = append(args, filter.ContactID)
	}
	if filter.CampaignID != "" {
		countQuery += " AND campaign_id = ?"
		args = append(args, filter.CampaignID)
	}
	if filter.Status != "" {
		countQuery += " AND status = ?"
		args = append(args, filter.Status)
	}

	var total int
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, contact_id, campaign_id, step_order, COALESCE(provider, ''), COALESCE(provider_id, ''),
			status, COALESCE(subject, ''), COALESCE(body, ''), to_email, COALESCE(meta_json, ''), created_at
		FROM marketing_sends WHERE 1=1`

	args = []any{}
	if filter.ContactID != "" {
		query += " AND contact_id = ?"
		args = append(args, filter.ContactID)
	}
	if filter.CampaignID != "" {
		query += " AND campaign_id = ?"
		args = append(args, filter.CampaignID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sends := []models.Send{}
	for rows.Next() {
		var s models.Send
		err := rows.Scan(&s.ID, &s.ContactID, &s.CampaignID, &s.StepOrder, &s.Provider, &s.ProviderID, &s.Status, &s.Subject, &s.Body, &s.ToEmail, &s.MetaJSON, &s.CreatedAt)
		if err != nil {
			return nil, 0, err
		}
		sends = append(sends, s)
	}

	return sends, total, rows.Err()
}

// GetByProviderID looks up a send by its provider message id, the key
// delivery webhooks carry
func (r *SendRepository) GetByProviderID(provider, providerID string) (*models.Send, error) {
	s := &models.Send{}
	err := r.db.QueryRow(`
		SELECT id, contact_id, campaign_id, step_order, COALESCE(provider, ''), COALESCE(provider_id, ''),
			status, COALESCE(subject, ''), COALESCE(body, ''), to_email, COALESCE(meta_json, ''), created_at
		FROM marketing_sends WHERE provider = ? AND provider_id = ?`, provider, providerID,
	).Scan(&s.ID, &s.ContactID, &s.CampaignID, &s.StepOrder, &s.Provider, &s.ProviderID, &s.Status, &s.Subject, &s.Body, &s.ToEmail, &s.MetaJSON, &s.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateStatusByProviderID applies a webhook status update. Returns false
// when no send matches the provider message id.
func (r *SendRepository) UpdateStatusByProviderID(provider, providerID, status string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE marketing_sends SET status = ?
		WHERE provider = ? AND provider_id = ?`,
		status, provider, providerID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
