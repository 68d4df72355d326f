package reminder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/pilltime/internal/occurrence"
	"github.com/example/pilltime/internal/persistence"
)

// MedicationSource captures the medication reads the generator needs.
type MedicationSource interface {
	GetMedication(ctx context.Context, id string) (persistence.Medication, error)
	ListActiveForDate(ctx context.Context, day time.Time) ([]persistence.Medication, error)
}

// LogWriter captures the log insert the generator needs.
type LogWriter interface {
	CreateLog(ctx context.Context, log persistence.MedicationLog) error
}

// Generator expands medication schedules into concrete pending log entries.
//
// Generation is idempotent: the store rejects duplicate (medication,
// scheduled instant) pairs and the generator treats that rejection as a
// benign no-op, so the periodic cadence and ad hoc regeneration after an
// edit can race without creating double occurrences.
type Generator struct {
	medications MedicationSource
	logs        LogWriter
	engine      *occurrence.Engine
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewGenerator constructs a generator with the provided dependencies.
func NewGenerator(medications MedicationSource, logs LogWriter, engine *occurrence.Engine, idGenerator func() string, now func() time.Time, logger *slog.Logger) *Generator {
	if engine == nil {
		engine = occurrence.NewEngine(nil)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		medications: medications,
		logs:        logs,
		engine:      engine,
		idGenerator: idGenerator,
		now:         now,
		logger:      logger.With("service", "Generator"),
	}
}

// GenerateForDate creates pending log entries for every active in-window
// medication on the given calendar day. One medication's failure never
// aborts generation for the rest.
func (g *Generator) GenerateForDate(ctx context.Context, day time.Time) (int, error) {
	day = g.engine.DayOf(day)
	logger := g.logger.With("operation", "GenerateForDate", "date", day.Format("2006-01-02"))

	medications, err := g.medications.ListActiveForDate(ctx, day)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list active medications", "error", err)
		return 0, err
	}

	created := 0
	for _, medication := range medications {
		count, err := g.createOccurrences(ctx, medication, day)
		if err != nil {
			logger.ErrorContext(ctx, "failed to generate occurrences", "medication_id", medication.ID, "error", err)
			continue
		}
		created += count
	}

	logger.InfoContext(ctx, "generation finished", "created", created, "medications", len(medications))
	return created, nil
}

// GenerateForMedication creates pending log entries for one medication,
// covering today and tomorrow. It is invoked after a medication is created,
// reactivated, or has its times or dates changed. Unknown or inactive
// medications produce zero entries without error.
func (g *Generator) GenerateForMedication(ctx context.Context, id string) (int, error) {
	logger := g.logger.With("operation", "GenerateForMedication", "medication_id", id)

	medication, err := g.medications.GetMedication(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return 0, nil
		}
		logger.ErrorContext(ctx, "failed to load medication", "error", err)
		return 0, err
	}
	if !medication.Active {
		return 0, nil
	}

	today := g.engine.DayOf(g.now())
	tomorrow := today.AddDate(0, 0, 1)

	created := 0
	for _, day := range []time.Time{today, tomorrow} {
		if !g.engine.InWindow(medication.StartDate, medication.EndDate, day) {
			continue
		}
		count, err := g.createOccurrences(ctx, medication, day)
		if err != nil {
			logger.ErrorContext(ctx, "failed to generate occurrences", "date", day.Format("2006-01-02"), "error", err)
			continue
		}
		created += count
	}

	logger.InfoContext(ctx, "generation finished", "created", created)
	return created, nil
}

func (g *Generator) createOccurrences(ctx context.Context, medication persistence.Medication, day time.Time) (int, error) {
	instants, err := g.engine.Expand(day, medication.Times)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, instant := range instants {
		log := persistence.MedicationLog{
			ID:           g.idGenerator(),
			MedicationID: medication.ID,
			ScheduledAt:  instant,
			Status:       persistence.StatusPending,
			CreatedAt:    g.now(),
		}
		if err := g.logs.CreateLog(ctx, log); err != nil {
			if errors.Is(err, persistence.ErrDuplicate) {
				continue
			}
			g.logger.ErrorContext(ctx, "failed to insert log entry",
				"medication_id", medication.ID, "scheduled_at", instant, "error", err)
			continue
		}
		created++
	}
	return created, nil
}
