package reminder

import (
	"context"
	"log/slog"
	"time"
)

// MissedMarker captures the bulk transition the sweeper needs.
type MissedMarker interface {
	MarkMissedBefore(ctx context.Context, reference time.Time) (int64, error)
}

// Sweeper transitions overdue pending log entries to missed. It is the only
// component that ever marks an occurrence missed, and it deliberately ignores
// the medication's active flag and end date: occurrences that already exist
// keep aging even after a medication is deactivated.
type Sweeper struct {
	logs   MissedMarker
	logger *slog.Logger
}

// NewSweeper constructs a sweeper with the provided dependencies.
func NewSweeper(logs MissedMarker, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{logs: logs, logger: logger.With("service", "Sweeper")}
}

// MarkMissed runs one sweep relative to the given instant and returns the
// number of transitioned entries. Re-running with the same or a later instant
// is a no-op for rows already transitioned.
func (s *Sweeper) MarkMissed(ctx context.Context, now time.Time) (int64, error) {
	logger := s.logger.With("operation", "MarkMissed")

	changed, err := s.logs.MarkMissedBefore(ctx, now)
	if err != nil {
		logger.ErrorContext(ctx, "missed sweep failed", "error", err)
		return 0, err
	}
	if changed > 0 {
		logger.InfoContext(ctx, "marked overdue entries as missed", "count", changed)
	}
	return changed, nil
}
