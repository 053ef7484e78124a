// Package ratelimit bounds sends per hour with a fixed-window counter
// persisted in the marketing_config table so it survives restarts.
package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/signalcrest/outreach/internal/models"
)

// Limiter is a fixed-window hourly rate limiter. The window is keyed by the
// current UTC hour; a stored key from a previous hour resets the count
// lazily on the next Take. Takes are serialized by a process-level mutex
// and a store transaction, so concurrent ticks cannot overspend the cap.
type Limiter struct {
	db  *sql.DB
	now func() time.Time
	mu  sync.Mutex
}

func New(db *sql.DB) *Limiter {
	return &Limiter{db: db, now: time.Now}
}

// NewWithClock creates a limiter with an injected clock for testing
func NewWithClock(db *sql.DB, now func() time.Time) *Limiter {
	return &Limiter{db: db, now: now}
}

// Take consumes n sends from the current hour's budget. It returns false,
// leaving the counter unchanged, when the budget would be exceeded.
func (l *Limiter) Take(ctx context.Context, allowed, n int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := BucketKey(l.now().UTC())

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin rate bucket tx: %w", err)
	}
	defer tx.Rollback()

	storedKey, err := readValue(tx, models.ConfigKeyRateBucketHour)
	if err != nil {
		return false, err
	}
	count := 0
	if storedKey == key {
		raw, err := readValue(tx, models.ConfigKeyRateBucketCount)
		if err != nil {
			return false, err
		}
		if c, err := strconv.Atoi(raw); err == nil {
			count = c
		}
	}

	if count+n > allowed {
		return false, nil
	}

	if err := writeValue(tx, models.ConfigKeyRateBucketHour, key); err != nil {
		return false, err
	}
	if err := writeValue(tx, models.ConfigKeyRateBucketCount, strconv.Itoa(count+n)); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit rate bucket: %w", err)
	}
	return true, nil
}

// BucketKey formats the fixed-window key for an hour, e.g. "2025-1-1-9"
func BucketKey(t time.Time) string {
	return fmt.Sprintf("%d-%d-%d-%d", t.Year(), int(t.Month()), t.Day(), t.Hour())
}

func readValue(tx *sql.Tx, key string) (string, error) {
	var value string
	err := tx.QueryRow("SELECT value FROM marketing_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return value, nil
}

func writeValue(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec(`
		INSERT INTO marketing_config (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
