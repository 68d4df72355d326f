package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/example/pilltime/internal/persistence"
)

// SettingService manages the key/value application preferences.
type SettingService struct {
	settings persistence.SettingRepository
	now      func() time.Time
	logger   *slog.Logger
}

// NewSettingService constructs a setting service with the provided dependencies.
func NewSettingService(settings persistence.SettingRepository, now func() time.Time, logger *slog.Logger) *SettingService {
	if now == nil {
		now = time.Now
	}
	return &SettingService{settings: settings, now: now, logger: defaultLogger(logger)}
}

func (s *SettingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SettingService", operation, attrs...)
}

// ListSettings returns every stored preference.
func (s *SettingService) ListSettings(ctx context.Context) ([]persistence.Setting, error) {
	settings, err := s.settings.ListSettings(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return settings, nil
}

// GetSetting retrieves one preference by key.
func (s *SettingService) GetSetting(ctx context.Context, key string) (persistence.Setting, error) {
	setting, err := s.settings.GetSetting(ctx, key)
	if err != nil {
		return persistence.Setting{}, mapRepoError(err)
	}
	return setting, nil
}

// UpsertSetting stores a preference value.
func (s *SettingService) UpsertSetting(ctx context.Context, key, value string) error {
	logger := s.loggerWith(ctx, "UpsertSetting", "key", key)

	if strings.TrimSpace(key) == "" {
		vErr := &ValidationError{}
		vErr.add("key", "key is required")
		return vErr
	}

	setting := persistence.Setting{Key: key, Value: value, UpdatedAt: s.now()}
	if err := s.settings.UpsertSetting(ctx, setting); err != nil {
		logger.ErrorContext(ctx, "failed to save setting", "error", err)
		return err
	}

	logger.InfoContext(ctx, "setting saved")
	return nil
}

// DeleteSetting removes a preference by key.
func (s *SettingService) DeleteSetting(ctx context.Context, key string) error {
	logger := s.loggerWith(ctx, "DeleteSetting", "key", key)
	if err := s.settings.DeleteSetting(ctx, key); err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to delete setting", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "setting deleted")
	return nil
}
