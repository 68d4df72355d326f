package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migrations lists ordered schema changes. Each entry is applied once and
// recorded in schema_migrations; new statements are appended, never edited.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS medications (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		dosage TEXT,
		frequency TEXT NOT NULL DEFAULT '',
		times TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS medication_logs (
		id TEXT PRIMARY KEY,
		medication_id TEXT NOT NULL REFERENCES medications(id) ON DELETE CASCADE,
		scheduled_at TEXT NOT NULL,
		taken_at TEXT,
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'taken', 'missed', 'skipped')),
		notes TEXT,
		created_at TEXT NOT NULL,
		UNIQUE (medication_id, scheduled_at)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_medication_logs_scheduled_at
		ON medication_logs (scheduled_at)`,
	`CREATE INDEX IF NOT EXISTS idx_medication_logs_status
		ON medication_logs (status, scheduled_at)`,
	`CREATE TABLE IF NOT EXISTS push_subscriptions (
		endpoint TEXT PRIMARY KEY,
		p256dh TEXT NOT NULL,
		auth TEXT NOT NULL,
		user_agent TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
}

// Migrate applies every pending schema migration in order.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	if _, err := cp.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current int
	if err := cp.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for version := current + 1; version <= len(migrations); version++ {
		statement := migrations[version-1]
		err := cp.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.Exec(statement); err != nil {
				return err
			}
			_, err := tx.Exec(
				`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
				version, time.Now().UTC().Format(time.RFC3339),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", version, err)
		}
	}

	return nil
}
