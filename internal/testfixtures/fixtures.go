package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/pilltime/internal/persistence"
)

var (
	medicationCounter   uint64
	logCounter          uint64
	subscriptionCounter uint64
)

var referenceTime = time.Date(2024, time.January, 10, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// --------------------------- Medication fixtures --------------------------

// MedicationFixture represents a deterministic medication record.
type MedicationFixture struct {
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

// MedicationOption configures the generated medication fixture.
type MedicationOption func(*MedicationFixture)

// NewMedicationFixture returns a deterministic medication fixture with
// optional overrides.
func NewMedicationFixture(opts ...MedicationOption) MedicationFixture {
	idx := atomic.AddUint64(&medicationCounter, 1)
	id := fmt.Sprintf("medication-%03d", idx)
	dosage := fmt.Sprintf("%d mg", 50*idx)
	startDate := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	fixture := MedicationFixture{
		ID:        id,
		Name:      fmt.Sprintf("Medication %03d", idx),
		Dosage:    &dosage,
		Frequency: "daily",
		Times:     []string{"08:00", "20:00"},
		StartDate: startDate,
		Active:    true,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithMedicationID overrides the generated medication ID.
func WithMedicationID(id string) MedicationOption {
	return func(f *MedicationFixture) {
		f.ID = id
	}
}

// WithMedicationName overrides the generated name.
func WithMedicationName(name string) MedicationOption {
	return func(f *MedicationFixture) {
		f.Name = name
	}
}

// WithMedicationDosage sets the dosage description.
func WithMedicationDosage(dosage string) MedicationOption {
	return func(f *MedicationFixture) {
		value := dosage
		f.Dosage = &value
	}
}

// WithoutMedicationDosage clears the dosage.
func WithoutMedicationDosage() MedicationOption {
	return func(f *MedicationFixture) {
		f.Dosage = nil
	}
}

// WithMedicationTimes sets the scheduled times of day.
func WithMedicationTimes(times ...string) MedicationOption {
	return func(f *MedicationFixture) {
		f.Times = append([]string(nil), times...)
	}
}

// WithMedicationStartDate sets the start date.
func WithMedicationStartDate(t time.Time) MedicationOption {
	return func(f *MedicationFixture) {
		f.StartDate = t
	}
}

// WithMedicationEndDate sets the optional end date.
func WithMedicationEndDate(t time.Time) MedicationOption {
	return func(f *MedicationFixture) {
		end := t
		f.EndDate = &end
	}
}

// WithoutMedicationEndDate clears any end date on the fixture.
func WithoutMedicationEndDate() MedicationOption {
	return func(f *MedicationFixture) {
		f.EndDate = nil
	}
}

// WithMedicationActive sets the active flag.
func WithMedicationActive(active bool) MedicationOption {
	return func(f *MedicationFixture) {
		f.Active = active
	}
}

// WithMedicationNotes sets the notes field.
func WithMedicationNotes(notes string) MedicationOption {
	return func(f *MedicationFixture) {
		value := notes
		f.Notes = &value
	}
}

// WithMedicationTimestamps sets both created and updated timestamps.
func WithMedicationTimestamps(created, updated time.Time) MedicationOption {
	return func(f *MedicationFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Persistence returns the fixture as a persistence.Medication value.
func (f MedicationFixture) Persistence() persistence.Medication {
	return persistence.Medication{
		ID:        f.ID,
		Name:      f.Name,
		Dosage:    copyStringPtr(f.Dosage),
		Frequency: f.Frequency,
		Times:     append([]string(nil), f.Times...),
		StartDate: f.StartDate,
		EndDate:   copyTimePtr(f.EndDate),
		Active:    f.Active,
		Notes:     copyStringPtr(f.Notes),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// ------------------------------ Log fixtures ------------------------------

// LogFixture represents a deterministic medication log record.
type LogFixture struct {
	ID           string
	MedicationID string
	ScheduledAt  time.Time
	TakenAt      *time.Time
	Status       persistence.LogStatus
	Notes        *string
	CreatedAt    time.Time
}

// LogOption configures the generated log fixture.
type LogOption func(*LogFixture)

// NewLogFixture returns a deterministic log fixture with optional overrides.
func NewLogFixture(opts ...LogOption) LogFixture {
	idx := atomic.AddUint64(&logCounter, 1)
	id := fmt.Sprintf("log-%03d", idx)
	fixture := LogFixture{
		ID:           id,
		MedicationID: fmt.Sprintf("medication-%03d", idx),
		ScheduledAt:  referenceTime.Add(time.Duration(idx) * time.Hour),
		Status:       persistence.StatusPending,
		CreatedAt:    referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithLogID overrides the generated log ID.
func WithLogID(id string) LogOption {
	return func(f *LogFixture) {
		f.ID = id
	}
}

// WithLogMedicationID sets the associated medication ID.
func WithLogMedicationID(id string) LogOption {
	return func(f *LogFixture) {
		f.MedicationID = id
	}
}

// WithLogScheduledAt sets the scheduled instant.
func WithLogScheduledAt(t time.Time) LogOption {
	return func(f *LogFixture) {
		f.ScheduledAt = t
	}
}

// WithLogStatus sets the log status.
func WithLogStatus(status persistence.LogStatus) LogOption {
	return func(f *LogFixture) {
		f.Status = status
	}
}

// WithLogTakenAt sets the acknowledgment timestamp.
func WithLogTakenAt(t time.Time) LogOption {
	return func(f *LogFixture) {
		taken := t
		f.TakenAt = &taken
	}
}

// WithLogNotes sets the notes field.
func WithLogNotes(notes string) LogOption {
	return func(f *LogFixture) {
		value := notes
		f.Notes = &value
	}
}

// Persistence returns the fixture as a persistence.MedicationLog value.
func (f LogFixture) Persistence() persistence.MedicationLog {
	return persistence.MedicationLog{
		ID:           f.ID,
		MedicationID: f.MedicationID,
		ScheduledAt:  f.ScheduledAt,
		TakenAt:      copyTimePtr(f.TakenAt),
		Status:       f.Status,
		Notes:        copyStringPtr(f.Notes),
		CreatedAt:    f.CreatedAt,
	}
}

// -------------------------- Subscription fixtures -------------------------

// SubscriptionFixture represents a deterministic push subscription record.
type SubscriptionFixture struct {
	Endpoint  string
	P256dh    string
	Auth      string
	UserAgent *string
	CreatedAt time.Time
}

// SubscriptionOption configures the generated subscription fixture.
type SubscriptionOption func(*SubscriptionFixture)

// NewSubscriptionFixture returns a deterministic subscription fixture with
// optional overrides.
func NewSubscriptionFixture(opts ...SubscriptionOption) SubscriptionFixture {
	idx := atomic.AddUint64(&subscriptionCounter, 1)
	fixture := SubscriptionFixture{
		Endpoint:  fmt.Sprintf("https://push.example.com/subscription-%03d", idx),
		P256dh:    fmt.Sprintf("p256dh-key-%03d", idx),
		Auth:      fmt.Sprintf("auth-secret-%03d", idx),
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSubscriptionEndpoint overrides the generated endpoint.
func WithSubscriptionEndpoint(endpoint string) SubscriptionOption {
	return func(f *SubscriptionFixture) {
		f.Endpoint = endpoint
	}
}

// WithSubscriptionUserAgent sets the user agent string.
func WithSubscriptionUserAgent(ua string) SubscriptionOption {
	return func(f *SubscriptionFixture) {
		value := ua
		f.UserAgent = &value
	}
}

// WithSubscriptionCreatedAt sets the created timestamp.
func WithSubscriptionCreatedAt(t time.Time) SubscriptionOption {
	return func(f *SubscriptionFixture) {
		f.CreatedAt = t
	}
}

// Persistence returns the fixture as a persistence.PushSubscription value.
func (f SubscriptionFixture) Persistence() persistence.PushSubscription {
	return persistence.PushSubscription{
		Endpoint:  f.Endpoint,
		P256dh:    f.P256dh,
		Auth:      f.Auth,
		UserAgent: copyStringPtr(f.UserAgent),
		CreatedAt: f.CreatedAt,
	}
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
