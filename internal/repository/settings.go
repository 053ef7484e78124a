package repository

import (
	"database/sql"
	"time"

	"github.com/signalcrest/outreach/internal/models"
)

// SettingsRepository reads and writes the marketing_config key-value table
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns a config value, or "" when the key is not set
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM marketing_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Set upserts a config value
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO marketing_config (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	return err
}

// All returns every config entry keyed by name
func (r *SettingsRepository) All() (map[string]string, error) {
	rows, err := r.db.Query("SELECT key, value FROM marketing_config ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		values[k] = v
	}
	return values, rows.Err()
}

// List returns every config entry with timestamps
func (r *SettingsRepository) List() ([]models.ConfigEntry, error) {
	rows, err := r.db.Query("SELECT key, value, updated_at FROM marketing_config ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.ConfigEntry{}
	for rows.Next() {
		var e models.ConfigEntry
		if err := rows.Scan(&e.Key, &e.Value, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
