package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/pilltime/internal/persistence"
)

// LogQuery narrows log listings. From and To are calendar days; To is inclusive.
type LogQuery struct {
	MedicationID string
	From         *time.Time
	To           *time.Time
}

// LogInput carries the fields accepted when creating a log entry manually.
type LogInput struct {
	MedicationID string
	ScheduledAt  time.Time
	TakenAt      *time.Time
	Status       persistence.LogStatus
	Notes        *string
}

// LogUpdate carries a partial log update; nil fields keep the stored value.
type LogUpdate struct {
	Status  *persistence.LogStatus
	TakenAt *time.Time
	Notes   *string
}

// DayStats counts log entries per status for one day.
type DayStats struct {
	Total   int
	Taken   int
	Missed  int
	Pending int
	Skipped int
}

// TodayView is the dashboard projection: today's entries with their stats,
// plus tomorrow's already-generated entries. Whether clients merge the
// upcoming entries into the visible list is a presentation decision left to
// them.
type TodayView struct {
	Logs     []persistence.MedicationLog
	Upcoming []persistence.MedicationLog
	Stats    DayStats
}

// MedicationTotals aggregates history per medication.
type MedicationTotals struct {
	Name    string
	Total   int
	Taken   int
	Missed  int
	Pending int
	Skipped int
}

// History is the adherence report over a trailing window of days.
type History struct {
	Logs           []persistence.MedicationLog
	TotalDays      int
	TotalLogs      int
	Taken          int
	ComplianceRate float64
	Streak         int
	ByMedication   map[string]MedicationTotals
}

// LogService exposes log queries and the acknowledgment transitions. It owns
// the taken/skipped transitions; pending→missed belongs exclusively to the
// reminder sweep.
type LogService struct {
	logs        persistence.MedicationLogRepository
	medications persistence.MedicationRepository
	location    *time.Location
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewLogService constructs a log service with the provided dependencies.
func NewLogService(logs persistence.MedicationLogRepository, medications persistence.MedicationRepository, loc *time.Location, idGenerator func() string, now func() time.Time, logger *slog.Logger) *LogService {
	if loc == nil {
		loc = time.UTC
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &LogService{
		logs:        logs,
		medications: medications,
		location:    loc,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *LogService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "LogService", operation, attrs...)
}

// ListLogs returns log entries matching the query, newest first.
func (s *LogService) ListLogs(ctx context.Context, query LogQuery) ([]persistence.MedicationLog, error) {
	filter := persistence.LogFilter{MedicationID: query.MedicationID}
	if query.From != nil {
		from := s.dayOf(*query.From)
		filter.From = &from
	}
	if query.To != nil {
		to := s.dayOf(*query.To).AddDate(0, 0, 1)
		filter.To = &to
	}

	logs, err := s.logs.ListLogs(ctx, filter)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return logs, nil
}

// TodayView returns today's entries, their stats, and tomorrow's upcoming
// entries.
func (s *LogService) TodayView(ctx context.Context) (TodayView, error) {
	today := s.dayOf(s.now())

	logs, err := s.logs.ListForDate(ctx, today)
	if err != nil {
		return TodayView{}, mapRepoError(err)
	}
	upcoming, err := s.logs.ListForDate(ctx, today.AddDate(0, 0, 1))
	if err != nil {
		return TodayView{}, mapRepoError(err)
	}

	return TodayView{Logs: logs, Upcoming: upcoming, Stats: countStats(logs)}, nil
}

// History returns the trailing adherence report for the given number of days.
func (s *LogService) History(ctx context.Context, days int) (History, error) {
	if days <= 0 {
		days = 30
	}

	today := s.dayOf(s.now())
	from := today.AddDate(0, 0, -days)

	logs, err := s.logs.ListLogs(ctx, persistence.LogFilter{From: &from})
	if err != nil {
		return History{}, mapRepoError(err)
	}

	history := History{
		Logs:         logs,
		TotalDays:    days,
		TotalLogs:    len(logs),
		ByMedication: make(map[string]MedicationTotals),
	}

	names, err := s.medicationNames(ctx)
	if err != nil {
		return History{}, err
	}

	for _, log := range logs {
		if log.Status == persistence.StatusTaken {
			history.Taken++
		}
		totals := history.ByMedication[log.MedicationID]
		totals.Name = names[log.MedicationID]
		totals.Total++
		switch log.Status {
		case persistence.StatusTaken:
			totals.Taken++
		case persistence.StatusMissed:
			totals.Missed++
		case persistence.StatusPending:
			totals.Pending++
		case persistence.StatusSkipped:
			totals.Skipped++
		}
		history.ByMedication[log.MedicationID] = totals
	}

	if history.TotalLogs > 0 {
		history.ComplianceRate = float64(history.Taken) / float64(history.TotalLogs) * 100
	}

	streak, err := s.streak(ctx, today)
	if err != nil {
		// A streak failure degrades the report, it does not invalidate it.
		s.loggerWith(ctx, "History").WarnContext(ctx, "failed to compute streak", "error", err)
	}
	history.Streak = streak

	return history, nil
}

// streak counts consecutive fully-taken days ending yesterday.
func (s *LogService) streak(ctx context.Context, today time.Time) (int, error) {
	totals, err := s.logs.DailyTotals(ctx, today)
	if err != nil {
		return 0, mapRepoError(err)
	}

	streak := 0
	for _, day := range totals {
		if day.Total == 0 || day.Taken != day.Total {
			break
		}
		streak++
	}
	return streak, nil
}

// MarkTaken acknowledges a log entry as taken at the current instant.
func (s *LogService) MarkTaken(ctx context.Context, id string) (persistence.MedicationLog, error) {
	takenAt := s.now()
	return s.transition(ctx, "MarkTaken", id, persistence.StatusTaken, &takenAt)
}

// MarkSkipped acknowledges a log entry as deliberately skipped.
func (s *LogService) MarkSkipped(ctx context.Context, id string) (persistence.MedicationLog, error) {
	return s.transition(ctx, "MarkSkipped", id, persistence.StatusSkipped, nil)
}

func (s *LogService) transition(ctx context.Context, operation, id string, status persistence.LogStatus, takenAt *time.Time) (persistence.MedicationLog, error) {
	logger := s.loggerWith(ctx, operation, "log_id", id)

	log, err := s.logs.GetLog(ctx, id)
	if err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to load log entry", "error", err, "error_kind", ErrorKind(err))
		return persistence.MedicationLog{}, err
	}

	log.Status = status
	log.TakenAt = takenAt

	if err := s.logs.UpdateLog(ctx, log); err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to update log entry", "error", err, "error_kind", ErrorKind(err))
		return persistence.MedicationLog{}, err
	}

	logger.InfoContext(ctx, "log entry acknowledged", "status", string(status))
	return log, nil
}

// CreateLog inserts a manual log entry, used when acknowledging a dose that
// was never generated (for example a one-off extra dose).
func (s *LogService) CreateLog(ctx context.Context, input LogInput) (persistence.MedicationLog, error) {
	logger := s.loggerWith(ctx, "CreateLog", "medication_id", input.MedicationID)

	vErr := &ValidationError{}
	if input.MedicationID == "" {
		vErr.add("medication_id", "medication reference is required")
	}
	if !input.Status.Valid() {
		vErr.add("status", fmt.Sprintf("invalid status: %q", input.Status))
	}
	if vErr.HasErrors() {
		return persistence.MedicationLog{}, vErr
	}

	scheduledAt := input.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = s.now()
	}
	takenAt := cloneTime(input.TakenAt)
	if takenAt == nil && input.Status == persistence.StatusTaken {
		now := s.now()
		takenAt = &now
	}

	log := persistence.MedicationLog{
		ID:           s.idGenerator(),
		MedicationID: input.MedicationID,
		ScheduledAt:  scheduledAt,
		TakenAt:      takenAt,
		Status:       input.Status,
		Notes:        normalizeOptionalString(input.Notes),
		CreatedAt:    s.now(),
	}

	if err := s.logs.CreateLog(ctx, log); err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to create log entry", "error", err, "error_kind", ErrorKind(err))
		return persistence.MedicationLog{}, err
	}

	logger.With("log_id", log.ID).InfoContext(ctx, "log entry created")
	return log, nil
}

// UpdateLog merges the partial update onto a stored log entry.
func (s *LogService) UpdateLog(ctx context.Context, id string, update LogUpdate) (persistence.MedicationLog, error) {
	logger := s.loggerWith(ctx, "UpdateLog", "log_id", id)

	log, err := s.logs.GetLog(ctx, id)
	if err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to load log entry", "error", err, "error_kind", ErrorKind(err))
		return persistence.MedicationLog{}, err
	}

	if update.Status != nil {
		if !update.Status.Valid() {
			vErr := &ValidationError{}
			vErr.add("status", fmt.Sprintf("invalid status: %q", *update.Status))
			return persistence.MedicationLog{}, vErr
		}
		log.Status = *update.Status
	}
	if update.TakenAt != nil {
		log.TakenAt = cloneTime(update.TakenAt)
	}
	if update.Notes != nil {
		log.Notes = normalizeOptionalString(update.Notes)
	}

	if err := s.logs.UpdateLog(ctx, log); err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to update log entry", "error", err, "error_kind", ErrorKind(err))
		return persistence.MedicationLog{}, err
	}

	logger.InfoContext(ctx, "log entry updated")
	return log, nil
}

// DeleteLog removes a log entry. This is an administrative action; the
// reminder subsystem never deletes logs.
func (s *LogService) DeleteLog(ctx context.Context, id string) error {
	logger := s.loggerWith(ctx, "DeleteLog", "log_id", id)
	if err := s.logs.DeleteLog(ctx, id); err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to delete log entry", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "log entry deleted")
	return nil
}

func (s *LogService) medicationNames(ctx context.Context) (map[string]string, error) {
	medications, err := s.medications.ListMedications(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	names := make(map[string]string, len(medications))
	for _, medication := range medications {
		names[medication.ID] = medication.Name
	}
	return names, nil
}

func (s *LogService) dayOf(t time.Time) time.Time {
	y, m, d := t.In(s.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.location)
}

func countStats(logs []persistence.MedicationLog) DayStats {
	stats := DayStats{Total: len(logs)}
	for _, log := range logs {
		switch log.Status {
		case persistence.StatusTaken:
			stats.Taken++
		case persistence.StatusMissed:
			stats.Missed++
		case persistence.StatusPending:
			stats.Pending++
		case persistence.StatusSkipped:
			stats.Skipped++
		}
	}
	return stats
}
