package http

import (
	"fmt"
	"time"

	"github.com/example/pilltime/internal/persistence"
)

const dateLayout = "2006-01-02"

func parseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return parsed, nil
}

func formatDate(value time.Time) string {
	return value.Format(dateLayout)
}

func formatTimestamp(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

type medicationDTO struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Dosage    *string  `json:"dosage,omitempty"`
	Frequency string   `json:"frequency,omitempty"`
	Times     []string `json:"times"`
	StartDate string   `json:"start_date"`
	EndDate   *string  `json:"end_date,omitempty"`
	Active    bool     `json:"active"`
	Notes     *string  `json:"notes,omitempty"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

func toMedicationDTO(medication persistence.Medication) medicationDTO {
	dto := medicationDTO{
		ID:        medication.ID,
		Name:      medication.Name,
		Dosage:    medication.Dosage,
		Frequency: medication.Frequency,
		Times:     medication.Times,
		StartDate: formatDate(medication.StartDate),
		Active:    medication.Active,
		Notes:     medication.Notes,
		CreatedAt: formatTimestamp(medication.CreatedAt),
		UpdatedAt: formatTimestamp(medication.UpdatedAt),
	}
	if medication.EndDate != nil {
		end := formatDate(*medication.EndDate)
		dto.EndDate = &end
	}
	return dto
}

func toMedicationDTOs(medications []persistence.Medication) []medicationDTO {
	out := make([]medicationDTO, 0, len(medications))
	for _, medication := range medications {
		out = append(out, toMedicationDTO(medication))
	}
	return out
}

type logDTO struct {
	ID           string  `json:"id"`
	MedicationID string  `json:"medication_id"`
	ScheduledAt  string  `json:"scheduled_at"`
	TakenAt      *string `json:"taken_at,omitempty"`
	Status       string  `json:"status"`
	Notes        *string `json:"notes,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

func toLogDTO(log persistence.MedicationLog) logDTO {
	dto := logDTO{
		ID:           log.ID,
		MedicationID: log.MedicationID,
		ScheduledAt:  formatTimestamp(log.ScheduledAt),
		Status:       string(log.Status),
		Notes:        log.Notes,
		CreatedAt:    formatTimestamp(log.CreatedAt),
	}
	if log.TakenAt != nil {
		takenAt := formatTimestamp(*log.TakenAt)
		dto.TakenAt = &takenAt
	}
	return dto
}

func toLogDTOs(logs []persistence.MedicationLog) []logDTO {
	out := make([]logDTO, 0, len(logs))
	for _, log := range logs {
		out = append(out, toLogDTO(log))
	}
	return out
}

type settingDTO struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	UpdatedAt string `json:"updated_at"`
}

func toSettingDTO(setting persistence.Setting) settingDTO {
	return settingDTO{
		Key:       setting.Key,
		Value:     setting.Value,
		UpdatedAt: formatTimestamp(setting.UpdatedAt),
	}
}

func toSettingDTOs(settings []persistence.Setting) []settingDTO {
	out := make([]settingDTO, 0, len(settings))
	for _, setting := range settings {
		out = append(out, toSettingDTO(setting))
	}
	return out
}
