package persistence

import "context"
import "time"

// MedicationRepository exposes CRUD operations for medications.
type MedicationRepository interface {
	CreateMedication(ctx context.Context, medication Medication) error
	UpdateMedication(ctx context.Context, medication Medication) error
	GetMedication(ctx context.Context, id string) (Medication, error)
	ListMedications(ctx context.Context) ([]Medication, error)
	// ListActiveForDate returns active medications whose [start,end] window
	// contains the given calendar day.
	ListActiveForDate(ctx context.Context, day time.Time) ([]Medication, error)
	DeleteMedication(ctx context.Context, id string) error
}

// LogFilter narrows medication log queries.
type LogFilter struct {
	MedicationID string
	From         *time.Time
	To           *time.Time
}

// MedicationLogRepository stores per-occurrence log entries.
type MedicationLogRepository interface {
	// CreateLog inserts a pending log. It returns ErrDuplicate when a log
	// already exists for the same (medication, scheduled instant) pair.
	CreateLog(ctx context.Context, log MedicationLog) error
	GetLog(ctx context.Context, id string) (MedicationLog, error)
	UpdateLog(ctx context.Context, log MedicationLog) error
	DeleteLog(ctx context.Context, id string) error
	ListLogs(ctx context.Context, filter LogFilter) ([]MedicationLog, error)
	ListForDate(ctx context.Context, day time.Time) ([]MedicationLog, error)
	// MarkMissedBefore transitions every pending log scheduled before the
	// reference instant to missed and returns how many rows changed.
	MarkMissedBefore(ctx context.Context, reference time.Time) (int64, error)
	// ListDue returns pending logs of active medications whose scheduled
	// instant falls inside the given wall-clock minute.
	ListDue(ctx context.Context, minute time.Time) ([]DueLog, error)
	// DailyTotals returns per-day log counts for days strictly before the
	// given day, most recent first.
	DailyTotals(ctx context.Context, before time.Time) ([]DailyTotal, error)
}

// SubscriptionRepository stores Web Push subscriptions keyed by endpoint.
type SubscriptionRepository interface {
	// UpsertSubscription inserts the subscription or replaces the keys of an
	// existing one with the same endpoint.
	UpsertSubscription(ctx context.Context, sub PushSubscription) error
	// DeleteSubscription removes the subscription if present. Deleting an
	// unknown endpoint is not an error.
	DeleteSubscription(ctx context.Context, endpoint string) error
	ListSubscriptions(ctx context.Context) ([]PushSubscription, error)
	// DeleteSubscriptionsOlderThan removes subscriptions created before the
	// cutoff and returns how many were removed.
	DeleteSubscriptionsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SettingRepository stores application preferences.
type SettingRepository interface {
	UpsertSetting(ctx context.Context, setting Setting) error
	GetSetting(ctx context.Context, key string) (Setting, error)
	ListSettings(ctx context.Context) ([]Setting, error)
	DeleteSetting(ctx context.Context, key string) error
}
