package persistence

import "time"

// LogStatus enumerates the lifecycle states of a medication log entry.
type LogStatus string

const (
	// StatusPending marks a log that is waiting to be acknowledged.
	StatusPending LogStatus = "pending"
	// StatusTaken marks a log acknowledged as taken.
	StatusTaken LogStatus = "taken"
	// StatusMissed marks a log that aged past its scheduled time unacknowledged.
	StatusMissed LogStatus = "missed"
	// StatusSkipped marks a log the user chose to skip.
	StatusSkipped LogStatus = "skipped"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s LogStatus) Valid() bool {
	switch s {
	case StatusPending, StatusTaken, StatusMissed, StatusSkipped:
		return true
	}
	return false
}

// Medication represents a recurring prescription stored in persistence.
type Medication struct {
	ID        string
	Name      string
	Dosage    *string
	Frequency string
	Times     []string
	StartDate time.Time
	EndDate   *time.Time
	Active    bool
	Notes     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MedicationLog represents one scheduled occurrence of taking a medication.
// At most one log exists per (MedicationID, ScheduledAt) pair.
type MedicationLog struct {
	ID           string
	MedicationID string
	ScheduledAt  time.Time
	TakenAt      *time.Time
	Status       LogStatus
	Notes        *string
	CreatedAt    time.Time
}

// DueLog is a pending log joined with the medication fields needed to
// build a reminder notification.
type DueLog struct {
	LogID        string
	MedicationID string
	Name         string
	Dosage       *string
	ScheduledAt  time.Time
}

// PushSubscription represents a registered Web Push endpoint and its keys.
type PushSubscription struct {
	Endpoint  string
	P256dh    string
	Auth      string
	UserAgent *string
	CreatedAt time.Time
}

// Setting is a key/value application preference.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// DailyTotal aggregates log counts for one calendar day.
type DailyTotal struct {
	Date  time.Time
	Total int
	Taken int
}
