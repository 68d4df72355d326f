package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/pilltime/internal/persistence"
)

// SettingRepository implements persistence.SettingRepository using SQLite.
type SettingRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSettingRepository creates a new SQLite settings repository.
func NewSettingRepository(pool *ConnectionPool) *SettingRepository {
	return &SettingRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// UpsertSetting inserts or updates a key/value pair.
func (r *SettingRepository) UpsertSetting(ctx context.Context, setting persistence.Setting) error {
	if setting.Key == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`,
		setting.Key,
		setting.Value,
		setting.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return r.mapper.MapError(err)
}

// GetSetting retrieves a setting by key.
func (r *SettingRepository) GetSetting(ctx context.Context, key string) (persistence.Setting, error) {
	if key == "" {
		return persistence.Setting{}, persistence.ErrNotFound
	}

	var setting persistence.Setting
	var updatedAt string
	err := r.helper.QueryRow(ctx,
		`SELECT key, value, updated_at FROM settings WHERE key = ?`, key,
	).Scan(&setting.Key, &setting.Value, &updatedAt)
	if err != nil {
		return persistence.Setting{}, r.mapper.MapError(err)
	}
	if setting.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.Setting{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return setting, nil
}

// ListSettings returns all settings ordered by key.
func (r *SettingRepository) ListSettings(ctx context.Context) ([]persistence.Setting, error) {
	rows, err := r.helper.Query(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var settings []persistence.Setting
	for rows.Next() {
		var setting persistence.Setting
		var updatedAt string
		if err := rows.Scan(&setting.Key, &setting.Value, &updatedAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if setting.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
		settings = append(settings, setting)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return settings, nil
}

// DeleteSetting removes a setting by key.
func (r *SettingRepository) DeleteSetting(ctx context.Context, key string) error {
	if key == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return r.mapper.MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
