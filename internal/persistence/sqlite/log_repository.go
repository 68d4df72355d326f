package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/pilltime/internal/persistence"
)

// LogRepository implements persistence.MedicationLogRepository using SQLite.
type LogRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewLogRepository creates a new SQLite medication log repository.
func NewLogRepository(pool *ConnectionPool) *LogRepository {
	return &LogRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const logColumns = `id, medication_id, scheduled_at, taken_at, status, notes, created_at`

// CreateLog inserts a log entry. The (medication_id, scheduled_at) uniqueness
// constraint makes concurrent generation for the same occurrence safe; the
// loser receives persistence.ErrDuplicate.
func (r *LogRepository) CreateLog(ctx context.Context, log persistence.MedicationLog) error {
	if log.ID == "" || log.MedicationID == "" {
		return persistence.ErrConstraintViolation
	}
	if !log.Status.Valid() {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO medication_logs (` + logColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		log.ID,
		log.MedicationID,
		log.ScheduledAt.UTC().Format(time.RFC3339),
		nullTimestamp(log.TakenAt),
		string(log.Status),
		nullString(log.Notes),
		log.CreatedAt.UTC().Format(time.RFC3339),
	)
	return r.mapper.MapError(err)
}

// GetLog retrieves a log entry by ID.
func (r *LogRepository) GetLog(ctx context.Context, id string) (persistence.MedicationLog, error) {
	if id == "" {
		return persistence.MedicationLog{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+logColumns+` FROM medication_logs WHERE id = ?`, id)
	log, err := scanLog(row.Scan)
	if err != nil {
		return persistence.MedicationLog{}, r.mapper.MapError(err)
	}
	return log, nil
}

// UpdateLog updates the mutable fields of an existing log entry.
func (r *LogRepository) UpdateLog(ctx context.Context, log persistence.MedicationLog) error {
	if log.ID == "" {
		return persistence.ErrNotFound
	}
	if !log.Status.Valid() {
		return persistence.ErrConstraintViolation
	}

	query := `
		UPDATE medication_logs
		SET status = ?, taken_at = ?, notes = ?
		WHERE id = ?
	`
	result, err := r.helper.Exec(ctx, query,
		string(log.Status),
		nullTimestamp(log.TakenAt),
		nullString(log.Notes),
		log.ID,
	)
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

// DeleteLog removes a log entry by ID.
func (r *LogRepository) DeleteLog(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, `DELETE FROM medication_logs WHERE id = ?`, id)
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

// ListLogs returns log entries matching the filter, newest first.
func (r *LogRepository) ListLogs(ctx context.Context, filter persistence.LogFilter) ([]persistence.MedicationLog, error) {
	var conditions []string
	var args []interface{}

	if filter.MedicationID != "" {
		conditions = append(conditions, "medication_id = ?")
		args = append(args, filter.MedicationID)
	}
	if filter.From != nil {
		conditions = append(conditions, "scheduled_at >= ?")
		args = append(args, filter.From.UTC().Format(time.RFC3339))
	}
	if filter.To != nil {
		conditions = append(conditions, "scheduled_at < ?")
		args = append(args, filter.To.UTC().Format(time.RFC3339))
	}

	query := `SELECT ` + logColumns + ` FROM medication_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY scheduled_at DESC, id ASC"

	return r.queryLogs(ctx, query, args...)
}

// ListForDate returns log entries scheduled within the 24 hours starting at day.
func (r *LogRepository) ListForDate(ctx context.Context, day time.Time) ([]persistence.MedicationLog, error) {
	start := day.UTC().Format(time.RFC3339)
	end := day.Add(24 * time.Hour).UTC().Format(time.RFC3339)
	query := `
		SELECT ` + logColumns + `
		FROM medication_logs
		WHERE scheduled_at >= ? AND scheduled_at < ?
		ORDER BY scheduled_at ASC, id ASC
	`
	return r.queryLogs(ctx, query, start, end)
}

// MarkMissedBefore transitions pending logs scheduled before the reference
// instant to missed in one statement. Re-running is a no-op for rows already
// transitioned.
func (r *LogRepository) MarkMissedBefore(ctx context.Context, reference time.Time) (int64, error) {
	result, err := r.helper.Exec(ctx, `
		UPDATE medication_logs
		SET status = ?
		WHERE status = ? AND scheduled_at < ?
	`,
		string(persistence.StatusMissed),
		string(persistence.StatusPending),
		reference.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// ListDue returns pending logs of active medications whose scheduled instant
// falls inside the wall-clock minute containing the given instant.
func (r *LogRepository) ListDue(ctx context.Context, minute time.Time) ([]persistence.DueLog, error) {
	start := minute.Truncate(time.Minute)
	end := start.Add(time.Minute)

	rows, err := r.helper.Query(ctx, `
		SELECT l.id, l.medication_id, m.name, m.dosage, l.scheduled_at
		FROM medication_logs l
		JOIN medications m ON l.medication_id = m.id
		WHERE l.status = ?
			AND m.active = 1
			AND l.scheduled_at >= ?
			AND l.scheduled_at < ?
		ORDER BY l.scheduled_at ASC, l.id ASC
	`,
		string(persistence.StatusPending),
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var due []persistence.DueLog
	for rows.Next() {
		var entry persistence.DueLog
		var dosage sql.NullString
		var scheduledAt string

		if err := rows.Scan(&entry.LogID, &entry.MedicationID, &entry.Name, &dosage, &scheduledAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if dosage.Valid {
			entry.Dosage = &dosage.String
		}
		if entry.ScheduledAt, err = time.Parse(time.RFC3339, scheduledAt); err != nil {
			return nil, fmt.Errorf("failed to parse scheduled_at: %w", err)
		}
		due = append(due, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return due, nil
}

// DailyTotals returns per-day totals for days strictly before the given day,
// most recent first. Days are bucketed on the stored UTC timestamp.
func (r *LogRepository) DailyTotals(ctx context.Context, before time.Time) ([]persistence.DailyTotal, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT substr(scheduled_at, 1, 10) AS day,
			COUNT(*) AS total,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS taken
		FROM medication_logs
		WHERE substr(scheduled_at, 1, 10) < ?
		GROUP BY day
		ORDER BY day DESC
	`,
		string(persistence.StatusTaken),
		before.UTC().Format(dateLayout),
	)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var totals []persistence.DailyTotal
	for rows.Next() {
		var total persistence.DailyTotal
		var day string

		if err := rows.Scan(&day, &total.Total, &total.Taken); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if total.Date, err = time.Parse(dateLayout, day); err != nil {
			return nil, fmt.Errorf("failed to parse day: %w", err)
		}
		totals = append(totals, total)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return totals, nil
}

func (r *LogRepository) queryLogs(ctx context.Context, query string, args ...interface{}) ([]persistence.MedicationLog, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var logs []persistence.MedicationLog
	for rows.Next() {
		log, err := scanLog(rows.Scan)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return logs, nil
}

func scanLog(scan func(dest ...interface{}) error) (persistence.MedicationLog, error) {
	var log persistence.MedicationLog
	var takenAt, notes sql.NullString
	var scheduledAt, status, createdAt string

	err := scan(
		&log.ID,
		&log.MedicationID,
		&scheduledAt,
		&takenAt,
		&status,
		&notes,
		&createdAt,
	)
	if err != nil {
		return persistence.MedicationLog{}, err
	}

	log.Status = persistence.LogStatus(status)
	if notes.Valid {
		log.Notes = &notes.String
	}

	if log.ScheduledAt, err = time.Parse(time.RFC3339, scheduledAt); err != nil {
		return persistence.MedicationLog{}, fmt.Errorf("failed to parse scheduled_at: %w", err)
	}
	if takenAt.Valid {
		parsed, err := time.Parse(time.RFC3339, takenAt.String)
		if err != nil {
			return persistence.MedicationLog{}, fmt.Errorf("failed to parse taken_at: %w", err)
		}
		log.TakenAt = &parsed
	}
	if log.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.MedicationLog{}, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return log, nil
}
