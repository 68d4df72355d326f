package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/pilltime/internal/occurrence"
	"github.com/example/pilltime/internal/persistence"
)

// OccurrenceGenerator triggers ad hoc log generation after medication writes.
type OccurrenceGenerator interface {
	GenerateForMedication(ctx context.Context, id string) (int, error)
}

// MedicationInput carries the fields accepted when creating a medication.
type MedicationInput struct {
	Name      string
	Dosage    *string
	Frequency string
	Times     []string
	StartDate time.Time
	EndDate   *time.Time
	Notes     *string
}

// MedicationUpdate carries a partial update; nil fields keep the stored value.
// EndDateSet distinguishes "clear the end date" from "leave it unchanged".
type MedicationUpdate struct {
	Name       *string
	Dosage     *string
	Frequency  *string
	Times      []string
	StartDate  *time.Time
	EndDate    *time.Time
	EndDateSet bool
	Active     *bool
	Notes      *string
}

// MedicationService orchestrates validation, persistence, and occurrence
// regeneration for medications.
type MedicationService struct {
	medications persistence.MedicationRepository
	generator   OccurrenceGenerator
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewMedicationService constructs a medication service with the provided dependencies.
func NewMedicationService(medications persistence.MedicationRepository, generator OccurrenceGenerator, idGenerator func() string, now func() time.Time, logger *slog.Logger) *MedicationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &MedicationService{
		medications: medications,
		generator:   generator,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *MedicationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MedicationService", operation, attrs...)
}

// CreateMedication validates input, persists a new active medication, and
// generates its occurrences for today and tomorrow.
func (s *MedicationService) CreateMedication(ctx context.Context, input MedicationInput) (medication persistence.Medication, err error) {
	logger := s.loggerWith(ctx, "CreateMedication")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create medication", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("medication_id", medication.ID).InfoContext(ctx, "medication created")
	}()

	vErr := validateMedicationInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	medication = persistence.Medication{
		ID:        s.idGenerator(),
		Name:      strings.TrimSpace(input.Name),
		Dosage:    normalizeOptionalString(input.Dosage),
		Frequency: strings.TrimSpace(input.Frequency),
		Times:     append([]string(nil), input.Times...),
		StartDate: input.StartDate,
		EndDate:   cloneTime(input.EndDate),
		Active:    true,
		Notes:     normalizeOptionalString(input.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err = s.medications.CreateMedication(ctx, medication); err != nil {
		err = fmt.Errorf("failed to persist medication: %w", err)
		return
	}

	s.regenerate(ctx, logger, medication.ID)
	return medication, nil
}

// UpdateMedication merges the partial update onto the stored medication and
// regenerates occurrences when the times changed or the medication was
// switched back to active.
func (s *MedicationService) UpdateMedication(ctx context.Context, id string, update MedicationUpdate) (medication persistence.Medication, err error) {
	logger := s.loggerWith(ctx, "UpdateMedication", "medication_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update medication", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "medication updated")
	}()

	existing, err := s.medications.GetMedication(ctx, id)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	medication = existing
	if update.Name != nil {
		medication.Name = strings.TrimSpace(*update.Name)
	}
	if update.Dosage != nil {
		medication.Dosage = normalizeOptionalString(update.Dosage)
	}
	if update.Frequency != nil {
		medication.Frequency = strings.TrimSpace(*update.Frequency)
	}
	if update.Times != nil {
		medication.Times = append([]string(nil), update.Times...)
	}
	if update.StartDate != nil {
		medication.StartDate = *update.StartDate
	}
	if update.EndDateSet {
		medication.EndDate = cloneTime(update.EndDate)
	}
	if update.Active != nil {
		medication.Active = *update.Active
	}
	if update.Notes != nil {
		medication.Notes = normalizeOptionalString(update.Notes)
	}
	medication.UpdatedAt = s.now()

	vErr := validateMedicationInput(MedicationInput{
		Name:      medication.Name,
		Times:     medication.Times,
		StartDate: medication.StartDate,
		EndDate:   medication.EndDate,
	})
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.medications.UpdateMedication(ctx, medication); err != nil {
		err = mapRepoError(err)
		return
	}

	if update.Times != nil || (update.Active != nil && *update.Active) {
		s.regenerate(ctx, logger, medication.ID)
	}
	return medication, nil
}

// GetMedication retrieves a medication by ID.
func (s *MedicationService) GetMedication(ctx context.Context, id string) (persistence.Medication, error) {
	medication, err := s.medications.GetMedication(ctx, id)
	if err != nil {
		return persistence.Medication{}, mapRepoError(err)
	}
	return medication, nil
}

// ListMedications returns all medications.
func (s *MedicationService) ListMedications(ctx context.Context) ([]persistence.Medication, error) {
	medications, err := s.medications.ListMedications(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return medications, nil
}

// DeleteMedication removes a medication and its logs.
func (s *MedicationService) DeleteMedication(ctx context.Context, id string) error {
	logger := s.loggerWith(ctx, "DeleteMedication", "medication_id", id)
	if err := s.medications.DeleteMedication(ctx, id); err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to delete medication", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "medication deleted")
	return nil
}

// regenerate runs ad hoc occurrence generation. A generation failure is
// logged but never fails the medication write that triggered it.
func (s *MedicationService) regenerate(ctx context.Context, logger *slog.Logger, id string) {
	if s.generator == nil {
		return
	}
	if _, err := s.generator.GenerateForMedication(ctx, id); err != nil {
		logger.ErrorContext(ctx, "occurrence regeneration failed", "medication_id", id, "error", err)
	}
}

func validateMedicationInput(input MedicationInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if len(input.Times) == 0 {
		vErr.add("times", "at least one time of day is required")
	}
	for _, value := range input.Times {
		if _, _, err := occurrence.ParseTimeOfDay(value); err != nil {
			vErr.add("times", fmt.Sprintf("invalid time of day: %q", value))
			break
		}
	}
	if input.StartDate.IsZero() {
		vErr.add("start_date", "start date is required")
	}
	if input.EndDate != nil && !input.StartDate.IsZero() && input.EndDate.Before(input.StartDate) {
		vErr.add("end_date", "end date must not be before start date")
	}

	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
