package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/pilltime/internal/persistence"
)

// dateLayout is the storage format for date-resolution columns.
const dateLayout = "2006-01-02"

// MedicationRepository implements persistence.MedicationRepository using SQLite.
type MedicationRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewMedicationRepository creates a new SQLite medication repository.
func NewMedicationRepository(pool *ConnectionPool) *MedicationRepository {
	return &MedicationRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const medicationColumns = `id, name, dosage, frequency, times, start_date, end_date, active, notes, created_at, updated_at`

// CreateMedication inserts a new medication record.
func (r *MedicationRepository) CreateMedication(ctx context.Context, medication persistence.Medication) error {
	if medication.ID == "" {
		return persistence.ErrConstraintViolation
	}

	times, err := encodeTimes(medication.Times)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO medications (` + medicationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.helper.Exec(ctx, query,
		medication.ID,
		medication.Name,
		nullString(medication.Dosage),
		medication.Frequency,
		times,
		medication.StartDate.Format(dateLayout),
		nullDate(medication.EndDate),
		boolToInt(medication.Active),
		nullString(medication.Notes),
		medication.CreatedAt.UTC().Format(time.RFC3339),
		medication.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return r.mapper.MapError(err)
}

// UpdateMedication updates an existing medication record.
func (r *MedicationRepository) UpdateMedication(ctx context.Context, medication persistence.Medication) error {
	if medication.ID == "" {
		return persistence.ErrNotFound
	}

	times, err := encodeTimes(medication.Times)
	if err != nil {
		return err
	}

	query := `
		UPDATE medications
		SET name = ?, dosage = ?, frequency = ?, times = ?, start_date = ?,
			end_date = ?, active = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.helper.Exec(ctx, query,
		medication.Name,
		nullString(medication.Dosage),
		medication.Frequency,
		times,
		medication.StartDate.Format(dateLayout),
		nullDate(medication.EndDate),
		boolToInt(medication.Active),
		nullString(medication.Notes),
		medication.UpdatedAt.UTC().Format(time.RFC3339),
		medication.ID,
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

// GetMedication retrieves a medication by ID.
func (r *MedicationRepository) GetMedication(ctx context.Context, id string) (persistence.Medication, error) {
	if id == "" {
		return persistence.Medication{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+medicationColumns+` FROM medications WHERE id = ?`, id)
	medication, err := scanMedication(row.Scan)
	if err != nil {
		return persistence.Medication{}, r.mapper.MapError(err)
	}
	return medication, nil
}

// ListMedications returns all medications ordered by creation time descending.
func (r *MedicationRepository) ListMedications(ctx context.Context) ([]persistence.Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications ORDER BY created_at DESC, id ASC`
	return r.queryMedications(ctx, query)
}

// ListActiveForDate returns active medications whose window contains the day.
func (r *MedicationRepository) ListActiveForDate(ctx context.Context, day time.Time) ([]persistence.Medication, error) {
	dateStr := day.Format(dateLayout)
	query := `
		SELECT ` + medicationColumns + `
		FROM medications
		WHERE active = 1
			AND start_date <= ?
			AND (end_date IS NULL OR end_date >= ?)
		ORDER BY created_at ASC, id ASC
	`
	return r.queryMedications(ctx, query, dateStr, dateStr)
}

// DeleteMedication removes a medication and, via cascade, its logs.
func (r *MedicationRepository) DeleteMedication(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, `DELETE FROM medications WHERE id = ?`, id)
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

func (r *MedicationRepository) queryMedications(ctx context.Context, query string, args ...interface{}) ([]persistence.Medication, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var medications []persistence.Medication
	for rows.Next() {
		medication, err := scanMedication(rows.Scan)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		medications = append(medications, medication)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return medications, nil
}

func scanMedication(scan func(dest ...interface{}) error) (persistence.Medication, error) {
	var medication persistence.Medication
	var dosage, endDate, notes sql.NullString
	var times, startDate, createdAt, updatedAt string
	var active int

	err := scan(
		&medication.ID,
		&medication.Name,
		&dosage,
		&medication.Frequency,
		&times,
		&startDate,
		&endDate,
		&active,
		&notes,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Medication{}, err
	}

	if dosage.Valid {
		medication.Dosage = &dosage.String
	}
	if notes.Valid {
		medication.Notes = &notes.String
	}
	medication.Active = active != 0

	if err := json.Unmarshal([]byte(times), &medication.Times); err != nil {
		return persistence.Medication{}, fmt.Errorf("failed to decode times: %w", err)
	}

	if medication.StartDate, err = time.Parse(dateLayout, startDate); err != nil {
		return persistence.Medication{}, fmt.Errorf("failed to parse start_date: %w", err)
	}
	if endDate.Valid {
		parsed, err := time.Parse(dateLayout, endDate.String)
		if err != nil {
			return persistence.Medication{}, fmt.Errorf("failed to parse end_date: %w", err)
		}
		medication.EndDate = &parsed
	}
	if medication.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.Medication{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if medication.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.Medication{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return medication, nil
}

func encodeTimes(times []string) (string, error) {
	if len(times) == 0 {
		return "", persistence.ErrConstraintViolation
	}
	encoded, err := json.Marshal(times)
	if err != nil {
		return "", fmt.Errorf("failed to encode times: %w", err)
	}
	return string(encoded), nil
}

func nullString(value *string) sql.NullString {
	if value == nil || strings.TrimSpace(*value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullDate(value *time.Time) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: value.Format(dateLayout), Valid: true}
}

func nullTimestamp(value *time.Time) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: value.UTC().Format(time.RFC3339), Valid: true}
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
