package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/signalcrest/outreach/internal/models"
)

type EnrollmentRepository struct {
	db *sql.DB
}

func NewEnrollmentRepository(db *sql.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create creates a new enrollment. The (campaign_id, contact_id) unique
// constraint rejects double enrollment; IsDuplicate identifies that case.
func (r *EnrollmentRepository) Create(e *models.Enrollment) error {
	e.ID = uuid.New().String()
	if e.Status == "" {
		e.Status = models.EnrollmentStatusActive
	}
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt

	_, err := r.db.Exec(`
		INSERT INTO marketing_enrollments (id, campaign_id, contact_id, status, next_step_order, next_run_at, variant_json, data_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CampaignID, e.ContactID, e.Status, e.NextStepOrder, e.NextRunAt, e.VariantJSON, e.DataJSON, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create enrollment: %w", err)
	}
	return nil
}

// IsDuplicate reports whether err is the unique-constraint violation raised
// when a contact is already enrolled in the campaign
func IsDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsReferenced reports whether err is a foreign-key violation, raised when
// deleting a row other tables still point at
func IsReferenced(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// GetByID returns an enrollment by ID
func (r *EnrollmentRepository) GetByID(id string) (*models.Enrollment, error) {
	return r.scanOne(r.db.QueryRow(selectEnrollment+" WHERE id = ?", id))
}

// DueBatch returns up to limit active enrollments whose next_run_at has
// passed, oldest due first. The ordering is a fairness guarantee: starved
// enrollments are served before newly due ones.
func (r *EnrollmentRepository) DueBatch(now time.Time, limit int) ([]models.Enrollment, error) {
	rows, err := r.db.Query(
		selectEnrollment+`
		WHERE status = ? AND next_run_at <= ?
		ORDER BY next_run_at ASC
		LIMIT ?`,
		models.EnrollmentStatusActive, now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanAll(rows)
}

// Claim atomically moves an enrollment from active to the transient sending
// status, but only while the row still points at expectedStepOrder. A tick
// that sends always moves the step pointer or the status afterwards, so a
// claim made from a stale batch snapshot fails here instead of re-sending a
// step another tick already handled. Returns false when the row was not
// claimable; the caller must skip it.
func (r *EnrollmentRepository) Claim(id string, expectedStepOrder int) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE marketing_enrollments SET status = ?, updated_at = ?
		WHERE id = ? AND status = ? AND next_step_order = ?`,
		models.EnrollmentStatusSending, time.Now(), id, models.EnrollmentStatusActive, expectedStepOrder,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release returns a claimed enrollment to active without touching its
// schedule. Used when a tick halts before attempting the send.
func (r *EnrollmentRepository) Release(id string) error {
	_, err := r.db.Exec(`
		UPDATE marketing_enrollments SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		models.EnrollmentStatusActive, time.Now(), id, models.EnrollmentStatusSending,
	)
	return err
}

// Advance points a claimed enrollment at its next step and returns it to
// active. lastSentAt is recorded only when a send was attempted.
func (r *EnrollmentRepository) Advance(id string, nextStepOrder int, nextRunAt time.Time, lastSentAt *time.Time) error {
	if lastSentAt != nil {
		_, err := r.db.Exec(`
			UPDATE marketing_enrollments SET status = ?, next_step_order = ?, next_run_at = ?, last_sent_at = ?, updated_at = ?
			WHERE id = ?`,
			models.EnrollmentStatusActive, nextStepOrder, nextRunAt, lastSentAt, time.Now(), id,
		)
		return err
	}
	_, err := r.db.Exec(`
		UPDATE marketing_enrollments SET status = ?, next_step_order = ?, next_run_at = ?, updated_at = ?
		WHERE id = ?`,
		models.EnrollmentStatusActive, nextStepOrder, nextRunAt, time.Now(), id,
	)
	return err
}

// Complete marks an enrollment finished. Completed rows never run again
// and are kept as an audit trail.
func (r *EnrollmentRepository) Complete(id string, lastSentAt *time.Time) error {
	if lastSentAt != nil {
		_, err := r.db.Exec(`
			UPDATE marketing_enrollments SET status = ?, last_sent_at = ?, updated_at = ?
			WHERE id = ?`,
			models.EnrollmentStatusCompleted, lastSentAt, time.Now(), id,
		)
		return err
	}
	_, err := r.db.Exec(`
		UPDATE marketing_enrollments SET status = ?, updated_at = ?
		WHERE id = ?`,
		models.EnrollmentStatusCompleted, time.Now(), id,
	)
	return err
}

// Defer reschedules a claimed enrollment without advancing its step,
// returning it to active. Used by the quiet-hours gate.
func (r *EnrollmentRepository) Defer(id string, nextRunAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE marketing_enrollments SET status = ?, next_run_at = ?, updated_at = ?
		WHERE id = ?`,
		models.EnrollmentStatusActive, nextRunAt, time.Now(), id,
	)
	return err
}

// SetStatus sets an enrollment's status directly (pause/resume/error)
func (r *EnrollmentRepository) SetStatus(id, status string) error {
	_, err := r.db.Exec(`
		UPDATE marketing_enrollments SET status = ?, updated_at = ?
		WHERE id = ?`,
		status, time.Now(), id,
	)
	return err
}

// List returns enrollments matching the filter
func (r *EnrollmentRepository) List(filter models.EnrollmentListFilter) ([]models.Enrollment, error) {
	query := selectEnrollment + " WHERE 1=1"
	args := []any{}

	if filter.CampaignID != "" {
		query += " AND campaign_id = ?"
		args = append(args, filter.CampaignID)
	}
	if filter.ContactID != "" {
		query += " AND contact_id = ?"
		args = append(args, filter.ContactID)
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
		return nil, err
	}
	defer rows.Close()
	return r.scanAll(rows)
}

const selectEnrollment = `
	SELECT id, campaign_id, contact_id, status, next_step_order, next_run_at, last_sent_at,
		COALESCE(variant_json, ''), COALESCE(data_json, ''), created_at, updated_at
	FROM marketing_enrollments`

func (r *EnrollmentRepository) scanOne(row *sql.Row) (*models.Enrollment, error) {
	e := &models.Enrollment{}
	var lastSent sql.NullTime
	err := row.Scan(&e.ID, &e.CampaignID, &e.ContactID, &e.Status, &e.NextStepOrder, &e.NextRunAt, &lastSent, &e.VariantJSON, &e.DataJSON, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lastSent.Valid {
		e.LastSentAt = &lastSent.Time
	}
	return e, nil
}

func (r *EnrollmentRepository) scanAll(rows *sql.Rows) ([]models.Enrollment, error) {
	enrollments := []models.Enrollment{}
	for rows.Next() {
		var e models.Enrollment
		var lastSent sql.NullTime
		err := rows.Scan(&e.ID, &e.CampaignID, &e.ContactID, &e.Status, &e.NextStepOrder, &e.NextRunAt, &lastSent, &e.VariantJSON, &e.DataJSON, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if lastSent.Valid {
			e.LastSentAt = &lastSent.Time
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}
