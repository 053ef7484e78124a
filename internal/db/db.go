package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
}

func New(path string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Migrate() error {
	for _, m := range Migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Migrations holds the full schema. Exported so tests can apply it to an
// in-memory database.
var Migrations = []string{
	migrationContacts,
	migrationCampaigns,
	migrationCampaignSteps,
	migrationEnrollments,
	migrationSends,
	migrationSuppressions,
	migrationConfig,
}

const migrationContacts = `
CREATE TABLE IF NOT EXISTS contacts (
    id TEXT PRIMARY KEY,
    email TEXT UNIQUE NOT NULL,
    first_name TEXT,
    last_name TEXT,
    title TEXT,
    company TEXT,
    linkedin_url TEXT,
    source TEXT,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
`

const migrationCampaigns = `
CREATE TABLE IF NOT EXISTS marketing_campaigns (
    id TEXT PRIMARY KEY,
    name TEXT UNIQUE NOT NULL,
    description TEXT,
    status TEXT NOT NULL DEFAULT 'active',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

const migrationCampaignSteps = `
CREATE TABLE IF NOT EXISTS marketing_campaign_steps (
    id TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL REFERENCES marketing_campaigns(id) ON DELETE CASCADE,
    step_order INTEGER NOT NULL,
    delay_minutes INTEGER NOT NULL DEFAULT 0,
    subject TEXT NOT NULL,
    body TEXT NOT NULL,
    subject_b TEXT,
    body_b TEXT,
    weight_b INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(campaign_id, step_order)
);
`

const migrationEnrollments = `
CREATE TABLE IF NOT EXISTS marketing_enrollments (
    id TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL REFERENCES marketing_campaigns(id) ON DELETE CASCADE,
    contact_id TEXT NOT NULL REFERENCES contacts(id),
    status TEXT NOT NULL DEFAULT 'active',
    next_step_order INTEGER NOT NULL DEFAULT 1,
    next_run_at TIMESTAMP NOT NULL,
    last_sent_at TIMESTAMP,
    variant_json TEXT,
    data_json TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(campaign_id, contact_id)
);
CREATE INDEX IF NOT EXISTS idx_enrollments_due ON marketing_enrollments(status, next_run_at);
`

const migrationSends = `
CREATE TABLE IF NOT EXISTS marketing_sends (
    id TEXT PRIMARY KEY,
    contact_id TEXT NOT NULL,
    campaign_id TEXT NOT NULL,
    step_order INTEGER NOT NULL,
    provider TEXT,
    provider_id TEXT,
    status TEXT NOT NULL,
    subject TEXT,
    body TEXT,
    to_email TEXT NOT NULL,
    meta_json TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sends_contact ON marketing_sends(contact_id);
CREATE INDEX IF NOT EXISTS idx_sends_provider ON marketing_sends(provider, provider_id);
`

const migrationSuppressions = `
CREATE TABLE IF NOT EXISTS marketing_suppressions (
    id TEXT PRIMARY KEY,
    contact_id TEXT UNIQUE NOT NULL,
    reason TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

const migrationConfig = `
CREATE TABLE IF NOT EXISTS marketing_config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`
