package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/signalcrest/outreach/internal/models"
)

type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Create creates a new contact
func (r *ContactRepository) Create(c *models.Contact) error {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt

	_, err := r.db.Exec(`
		INSERT INTO contacts (id, email, first_name, last_name, title, company, linkedin_url, source, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Email, c.FirstName, c.LastName, c.Title, c.Company, c.LinkedinURL, c.Source, c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

// GetByID returns a contact by ID
func (r *ContactRepository) GetByID(id string) (*models.Contact, error) {
	c := &models.Contact{}
	err := r.db.QueryRow(`
		SELECT id, email, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(title, ''),
			COALESCE(company, ''), COALESCE(linkedin_url, ''), COALESCE(source, ''), is_active, created_at, updated_at
		FROM contacts WHERE id = ?`, id,
	).Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.Title, &c.Company, &c.LinkedinURL, &c.Source, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns contacts with optional search over name, email and company
func (r *ContactRepository) List(filter models.ContactListFilter) ([]models.Contact, int, error) {
	countQuery := "SELECT COUNT(*) FROM contacts WHERE 1=1"
	args := []any{}

	if filter.Search != "" {
		countQuery += " AND (email LIKE ? OR first_name LIKE ? OR last_name LIKE ? OR company LIKE ?)"
		s := "%" + filter.Search + "%"
		args = append(args, s, s, s, s)
	}

	var total int
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, email, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(title, ''),
			COALESCE(company, ''), COALESCE(linkedin_url, ''), COALESCE(source, ''), is_active, created_at, updated_at
		FROM contacts WHERE 1=1`

	args = []any{}
	if filter.Search != "" {
		query += " AND (email LIKE ? OR first_name LIKE ? OR last_name LIKE ? OR company LIKE ?)"
		s := "%" + filter.Search + "%"
		args = append(args, s, s, s, s)
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

	contacts := []models.Contact{}
	for rows.Next() {
		var c models.Contact
		err := rows.Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.Title, &c.Company, &c.LinkedinURL, &c.Source, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, c)
	}

	return contacts, total, rows.Err()
}

// Update updates a contact
func (r *ContactRepository) Update(c *models.Contact) error {
	c.UpdatedAt = time.Now()
	_, err := r.db.Exec(`
		UPDATE contacts SET email = ?, first_name = ?, last_name = ?, title = ?, company = ?, linkedin_url = ?, source = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		c.Email, c.FirstName, c.LastName, c.Title, c.Company, c.LinkedinURL, c.Source, c.IsActive, c.UpdatedAt, c.ID,
	)
	return err
}

// Delete deletes a contact
func (r *ContactRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM contacts WHERE id = ?", id)
	return err
}
