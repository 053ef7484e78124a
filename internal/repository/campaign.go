package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/signalcrest/outreach/internal/models"
)

type CampaignRepository struct {
	db *sql.DB
}

func NewCampaignRepository(db *sql.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create creates a new campaign
func (r *CampaignRepository) Create(c *models.Campaign) error {
	c.ID = uuid.New().String()
	if c.Status == "" {
		c.Status = models.CampaignStatusActive
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt

	_, err := r.db.Exec(`
		INSERT INTO marketing_campaigns (id, name, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.Status, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

// GetByID returns a campaign by ID
func (r *CampaignRepository) GetByID(id string) (*models.Campaign, error) {
	c := &models.Campaign{}
	err := r.db.QueryRow(`
		SELECT id, name, COALESCE(description, ''), status, created_at, updated_at
		FROM marketing_campaigns WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.Status, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns campaigns with step and enrollment counts
func (r *CampaignRepository) List(filter models.CampaignListFilter) ([]models.CampaignWithStats, int, error) {
	countQuery := "SELECT COUNT(*) FROM marketing_campaigns WHERE 1=1"
	args := []any{}

	if filter.Search != "" {
		countQuery += " AND (name LIKE ? OR description LIKE ?)"
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
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
		SELECT c.id, c.name, COALESCE(c.description, ''), c.status, c.created_at, c.updated_at,
			COALESCE((SELECT COUNT(*) FROM marketing_campaign_steps WHERE campaign_id = c.id), 0) as step_count,
			COALESCE((SELECT COUNT(*) FROM marketing_enrollments WHERE campaign_id = c.id), 0) as enrollment_count
		FROM marketing_campaigns c
		WHERE 1=1`

	args = []any{}
	if filter.Search != "" {
		query += " AND (c.name LIKE ? OR c.description LIKE ?)"
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.Status != "" {
		query += " AND c.status = ?"
		args = append(args, filter.Status)
	}

	query += " ORDER BY c.updated_at DESC"

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

	campaigns := []models.CampaignWithStats{}
	for rows.Next() {
		var c models.CampaignWithStats
		err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Status, &c.CreatedAt, &c.UpdatedAt, &c.StepCount, &c.EnrollmentCount)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	return campaigns, total, rows.Err()
}

// Update updates a campaign
func (r *CampaignRepository) Update(c *models.Campaign) error {
	c.UpdatedAt = time.Now()
	_, err := r.db.Exec(`
		UPDATE marketing_campaigns SET name = ?, description = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.Description, c.Status, c.UpdatedAt, c.ID,
	)
	return err
}

// Delete deletes a campaign and, via cascade, its steps and enrollments
func (r *CampaignRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM marketing_campaigns WHERE id = ?", id)
	return err
}

// AddStep appends a step to a campaign. step_order must be unique within
// the campaign; the database constraint rejects duplicates.
func (r *CampaignRepository) AddStep(s *models.Step) error {
	s.ID = uuid.New().String()
	s.CreatedAt = time.Now()

	_, err := r.db.Exec(`
		INSERT INTO marketing_campaign_steps (id, campaign_id, step_order, delay_minutes, subject, body, subject_b, body_b, weight_b, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.CampaignID, s.StepOrder, s.DelayMinutes, s.Subject, s.Body, s.SubjectB, s.BodyB, s.WeightB, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add step: %w", err)
	}
	return nil
}

// ListSteps returns a campaign's steps in sequence order
func (r *CampaignRepository) ListSteps(campaignID string) ([]models.Step, error) {
	rows, err := r.db.Query(`
		SELECT id, campaign_id, step_order, delay_minutes, subject, body,
			COALESCE(subject_b, ''), COALESCE(body_b, ''), weight_b, created_at
		FROM marketing_campaign_steps
		WHERE campaign_id = ?
		ORDER BY step_order`, campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := []models.Step{}
	for rows.Next() {
		var s models.Step
		err := rows.Scan(&s.ID, &s.CampaignID, &s.StepOrder, &s.DelayMinutes, &s.Subject, &s.Body, &s.SubjectB, &s.BodyB, &s.WeightB, &s.CreatedAt)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// GetStep returns the step with an exact step_order, or nil when none exists
func (r *CampaignRepository) GetStep(campaignID string, stepOrder int) (*models.Step, error) {
	s := &models.Step{}
	err := r.db.QueryRow(`
		SELECT id, campaign_id, step_order, delay_minutes, subject, body,
			COALESCE(subject_b, ''), COALESCE(body_b, ''), weight_b, created_at
		FROM marketing_campaign_steps
		WHERE campaign_id = ? AND step_order = ?`, campaignID, stepOrder,
	).Scan(&s.ID, &s.CampaignID, &s.StepOrder, &s.DelayMinutes, &s.Subject, &s.Body, &s.SubjectB, &s.BodyB, &s.WeightB, &s.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NextStep returns the step with the smallest step_order greater than
// afterOrder, or nil when the sequence is exhausted. Gaps in step_order do
// not end the campaign early.
func (r *CampaignRepository) NextStep(campaignID string, afterOrder int) (*models.Step, error) {
	s := &models.Step{}
	err := r.db.QueryRow(`
		SELECT id, campaign_id, step_order, delay_minutes, subject, body,
			COALESCE(subject_b, ''), COALESCE(body_b, ''), weight_b, created_at
		FROM marketing_campaign_steps
		WHERE campaign_id = ? AND step_order > ?
		ORDER BY step_order
		LIMIT 1`, campaignID, afterOrder,
	).Scan(&s.ID, &s.CampaignID, &s.StepOrder, &s.DelayMinutes, &s.Subject, &s.Body, &s.SubjectB, &s.BodyB, &s.WeightB, &s.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FirstStep returns the lowest-ordered step of a campaign, or nil
func (r *CampaignRepository) FirstStep(campaignID string) (*models.Step, error) {
	return r.NextStep(campaignID, 0)
}

// DeleteStep deletes a step
func (r *CampaignRepository) DeleteStep(id string) error {
	_, err := r.db.Exec("DELETE FROM marketing_campaign_steps WHERE id = ?", id)
	return err
}
