package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/pilltime/internal/persistence"
	"github.com/example/pilltime/internal/push"
)

// DueSource captures the due-occurrence query the notifier needs.
type DueSource interface {
	ListDue(ctx context.Context, minute time.Time) ([]persistence.DueLog, error)
}

// Broadcaster fans one payload out to every registered subscriber.
type Broadcaster interface {
	SendToAll(ctx context.Context, payload push.Payload) (push.Result, error)
}

// DispatchResult aggregates one notification pass.
type DispatchResult struct {
	Due    int
	Sent   int
	Failed int
}

// Notifier locates occurrences due in the current minute and dispatches one
// reminder per occurrence to all subscribers. Delivery never mutates log
// status; an occurrence only leaves pending through explicit acknowledgment
// or the missed sweep.
//
// Matching is exact to the minute. If the per-minute cadence skips a minute
// (process pause), those occurrences are not notified for and later age into
// missed; there is no notification backfill.
type Notifier struct {
	logs   DueSource
	sender Broadcaster
	now    func() time.Time
	logger *slog.Logger
}

// NewNotifier constructs a notifier with the provided dependencies.
func NewNotifier(logs DueSource, sender Broadcaster, now func() time.Time, logger *slog.Logger) *Notifier {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{logs: logs, sender: sender, now: now, logger: logger.With("service", "Notifier")}
}

// CheckAndNotifyDue runs one dispatch pass for the minute containing now.
func (n *Notifier) CheckAndNotifyDue(ctx context.Context, now time.Time) (DispatchResult, error) {
	logger := n.logger.With("operation", "CheckAndNotifyDue")

	due, err := n.logs.ListDue(ctx, now)
	if err != nil {
		logger.ErrorContext(ctx, "failed to locate due occurrences", "error", err)
		return DispatchResult{}, err
	}
	if len(due) == 0 {
		return DispatchResult{}, nil
	}

	logger.InfoContext(ctx, "found due occurrences", "count", len(due), "minute", now.Truncate(time.Minute))

	result := DispatchResult{Due: len(due)}
	for _, entry := range due {
		payload := push.NewMedicationReminder(entry.Name, entry.Dosage, entry.MedicationID, entry.LogID, n.now())
		broadcast, err := n.sender.SendToAll(ctx, payload)
		if err != nil {
			logger.ErrorContext(ctx, "broadcast failed", "log_id", entry.LogID, "error", err)
			continue
		}
		result.Sent += broadcast.Sent
		result.Failed += broadcast.Failed
	}
	return result, nil
}
