package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/pilltime/internal/persistence"
	"github.com/example/pilltime/internal/testfixtures"
)

type stubLogRepo struct {
	logs           map[string]persistence.MedicationLog
	dailyTotals    []persistence.DailyTotal
	dailyTotalsErr error
}

func newStubLogRepo() *stubLogRepo {
	return &stubLogRepo{logs: make(map[string]persistence.MedicationLog)}
}

func (s *stubLogRepo) add(log persistence.MedicationLog) {
	s.logs[log.ID] = log
}

func (s *stubLogRepo) CreateLog(_ context.Context, log persistence.MedicationLog) error {
	if _, ok := s.logs[log.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.logs[log.ID] = log
	return nil
}

func (s *stubLogRepo) GetLog(_ context.Context, id string) (persistence.MedicationLog, error) {
	log, ok := s.logs[id]
	if !ok {
		return persistence.MedicationLog{}, persistence.ErrNotFound
	}
	return log, nil
}

func (s *stubLogRepo) UpdateLog(_ context.Context, log persistence.MedicationLog) error {
	if _, ok := s.logs[log.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.logs[log.ID] = log
	return nil
}

func (s *stubLogRepo) DeleteLog(_ context.Context, id string) error {
	if _, ok := s.logs[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.logs, id)
	return nil
}

func (s *stubLogRepo) ListLogs(_ context.Context, filter persistence.LogFilter) ([]persistence.MedicationLog, error) {
	var out []persistence.MedicationLog
	for _, log := range s.logs {
		if filter.MedicationID != "" && log.MedicationID != filter.MedicationID {
			continue
		}
		if filter.From != nil && log.ScheduledAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !log.ScheduledAt.Before(*filter.To) {
			continue
		}
		out = append(out, log)
	}
	return out, nil
}

func (s *stubLogRepo) ListForDate(_ context.Context, day time.Time) ([]persistence.MedicationLog, error) {
	next := day.AddDate(0, 0, 1)
	var out []persistence.MedicationLog
	for _, log := range s.logs {
		if !log.ScheduledAt.Before(day) && log.ScheduledAt.Before(next) {
			out = append(out, log)
		}
	}
	return out, nil
}

func (s *stubLogRepo) MarkMissedBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (s *stubLogRepo) ListDue(_ context.Context, _ time.Time) ([]persistence.DueLog, error) {
	return nil, nil
}

func (s *stubLogRepo) DailyTotals(_ context.Context, _ time.Time) ([]persistence.DailyTotal, error) {
	if s.dailyTotalsErr != nil {
		return nil, s.dailyTotalsErr
	}
	return s.dailyTotals, nil
}

func TestLogService_TodayView(t *testing.T) {
	clock := testfixtures.NewClock(time.Date(2024, time.January, 10, 14, 0, 0, 0, time.UTC))
	repo := newStubLogRepo()

	today := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	repo.add(testfixtures.NewLogFixture(
		testfixtures.WithLogScheduledAt(today.Add(8*time.Hour)),
		testfixtures.WithLogStatus(persistence.StatusTaken),
	).Persistence())
	repo.add(testfixtures.NewLogFixture(
		testfixtures.WithLogScheduledAt(today.Add(12*time.Hour)),
		testfixtures.WithLogStatus(persistence.StatusTaken),
	).Persistence())
	repo.add(testfixtures.NewLogFixture(
		testfixtures.WithLogScheduledAt(today.Add(20*time.Hour)),
	).Persistence())
	repo.add(testfixtures.NewLogFixture(
		testfixtures.WithLogScheduledAt(today.AddDate(0, 0, 1).Add(8*time.Hour)),
	).Persistence())

	service := NewLogService(repo, newStubMedicationRepo(), time.UTC, nil, clock.NowFunc(), nil)

	view, err := service.TodayView(context.Background())
	if err != nil {
		t.Fatalf("TodayView returned error: %v", err)
	}
	if len(view.Logs) != 3 {
		t.Fatalf("expected 3 entries today, got %d", len(view.Logs))
	}
	if len(view.Upcoming) != 1 {
		t.Fatalf("expected 1 upcoming entry, got %d", len(view.Upcoming))
	}
	if view.Stats.Total != 3 || view.Stats.Taken != 2 || view.Stats.Pending != 1 {
		t.Fatalf("unexpected stats: %+v", view.Stats)
	}
}

func TestLogService_History(t *testing.T) {
	clock := testfixtures.NewClock(time.Date(2024, time.January, 10, 14, 0, 0, 0, time.UTC))

	t.Run("compliance and per-medication totals", func(t *testing.T) {
		repo := newStubLogRepo()
		medications := newStubMedicationRepo()

		medication := testfixtures.NewMedicationFixture(testfixtures.WithMedicationName("Aspirin")).Persistence()
		medications.medications[medication.ID] = medication

		day := time.Date(2024, time.January, 9, 0, 0, 0, 0, time.UTC)
		statuses := []persistence.LogStatus{
			persistence.StatusTaken,
			persistence.StatusTaken,
			persistence.StatusTaken,
			persistence.StatusMissed,
		}
		for i, status := range statuses {
			repo.add(testfixtures.NewLogFixture(
				testfixtures.WithLogMedicationID(medication.ID),
				testfixtures.WithLogScheduledAt(day.Add(time.Duration(i)*time.Hour)),
				testfixtures.WithLogStatus(status),
			).Persistence())
		}
		repo.dailyTotals = []persistence.DailyTotal{
			{Date: time.Date(2024, time.January, 9, 0, 0, 0, 0, time.UTC), Total: 2, Taken: 2},
			{Date: time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC), Total: 2, Taken: 2},
			{Date: time.Date(2024, time.January, 7, 0, 0, 0, 0, time.UTC), Total: 2, Taken: 1},
		}

		service := NewLogService(repo, medications, time.UTC, nil, clock.NowFunc(), nil)

		history, err := service.History(context.Background(), 30)
		if err != nil {
			t.Fatalf("History returned error: %v", err)
		}
		if history.TotalDays != 30 || history.TotalLogs != 4 || history.Taken != 3 {
			t.Fatalf("unexpected totals: %+v", history)
		}
		if history.ComplianceRate != 75 {
			t.Fatalf("expected 75%% compliance, got %v", history.ComplianceRate)
		}
		if history.Streak != 2 {
			t.Fatalf("expected a 2 day streak, got %d", history.Streak)
		}
		totals, ok := history.ByMedication[medication.ID]
		if !ok {
			t.Fatalf("expected per-medication totals for %s", medication.ID)
		}
		if totals.Name != "Aspirin" || totals.Total != 4 || totals.Taken != 3 || totals.Missed != 1 {
			t.Fatalf("unexpected medication totals: %+v", totals)
		}
	})

	t.Run("streak failure degrades the report", func(t *testing.T) {
		repo := newStubLogRepo()
		repo.dailyTotalsErr = errors.New("totals query failed")
		service := NewLogService(repo, newStubMedicationRepo(), time.UTC, nil, clock.NowFunc(), nil)

		history, err := service.History(context.Background(), 7)
		if err != nil {
			t.Fatalf("expected report despite streak failure, got %v", err)
		}
		if history.Streak != 0 {
			t.Fatalf("expected zero streak, got %d", history.Streak)
		}
	})

	t.Run("defaults to 30 days", func(t *testing.T) {
		service := NewLogService(newStubLogRepo(), newStubMedicationRepo(), time.UTC, nil, clock.NowFunc(), nil)
		history, err := service.History(context.Background(), 0)
		if err != nil {
			t.Fatalf("History returned error: %v", err)
		}
		if history.TotalDays != 30 {
			t.Fatalf("expected 30 day default window, got %d", history.TotalDays)
		}
	})
}

func TestLogService_Transitions(t *testing.T) {
	now := time.Date(2024, time.January, 10, 14, 30, 0, 0, time.UTC)
	clock := testfixtures.NewClock(now)

	t.Run("taken", func(t *testing.T) {
		repo := newStubLogRepo()
		log := testfixtures.NewLogFixture().Persistence()
		repo.add(log)
		service := NewLogService(repo, newStubMedicationRepo(), time.UTC, nil, clock.NowFunc(), nil)

		updated, err := service.MarkTaken(context.Background(), log.ID)
		if err != nil {
			t.Fatalf("MarkTaken returned error: %v", err)
		}
		if updated.Status != persistence.StatusTaken {
			t.Fatalf("expected taken status, got %q", updated.Status)
		}
		if updated.TakenAt == nil || !updated.TakenAt.Equal(now) {
			t.Fatalf("expected taken_at %s, got %v", now, updated.TakenAt)
		}
	})

	t.Run("skipped", func(t *testing.T) {
		repo := newStubLogRepo()
		log := testfixtures.NewLogFixture().Persistence()
		repo.add(log)
		service := NewLogService(repo, newStubMedicationRepo(), time.UTC, nil, clock.NowFunc(), nil)

		updated, err := service.MarkSkipped(context.Background(), log.ID)
		if err != nil {
			t.Fatalf("MarkSkipped returned error: %v", err)
		}
		if updated.Status != persistence.StatusSkipped {
			t.Fatalf("expected skipped status, got %q", updated.Status)
		}
		if updated.TakenAt != nil {
			t.Fatalf("skipped entries must not carry taken_at, got %v", updated.TakenAt)
		}
	})

	t.Run("unknown entry", func(t *testing.T) {
		service := NewLogService(newStubLogRepo(), newStubMedicationRepo(), time.UTC, nil, clock.NowFunc(), nil)
		if _, err := service.MarkTaken(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestLogService_CreateLog(t *testing.T) {
	now := time.Date(2024, time.January, 10, 14, 30, 0, 0, time.UTC)
	clock := testfixtures.NewClock(now)

	t.Run("defaults scheduled and taken instants", func(t *testing.T) {
		repo := newStubLogRepo()
		service := NewLogService(repo, newStubMedicationRepo(), time.UTC, fixedID("log-001"), clock.NowFunc(), nil)

		log, err := service.CreateLog(context.Background(), LogInput{
			MedicationID: "medication-001",
			Status:       persistence.StatusTaken,
		})
		if err != nil {
			t.Fatalf("CreateLog returned error: %v", err)
		}
		if log.ID != "log-001" {
			t.Fatalf("unexpected id %q", log.ID)
		}
		if !log.ScheduledAt.Equal(now) {
			t.Fatalf("expected scheduled_at to default to now, got %s", log.ScheduledAt)
		}
		if log.TakenAt == nil || !log.TakenAt.Equal(now) {
			t.Fatalf("expected taken_at to default to now for taken entries, got %v", log.TakenAt)
		}
	})

	t.Run("validation", func(t *testing.T) {
		service := NewLogService(newStubLogRepo(), newStubMedicationRepo(), time.UTC, nil, clock.NowFunc(), nil)

		_, err := service.CreateLog(context.Background(), LogInput{Status: "unknown"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		for _, field := range []string{"medication_id", "status"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected error on field %q, got %v", field, vErr.FieldErrors)
			}
		}
	})
}

func TestLogService_UpdateLog(t *testing.T) {
	clock := testfixtures.NewClock(time.Date(2024, time.January, 10, 14, 30, 0, 0, time.UTC))

	t.Run("merges partial update", func(t *testing.T) {
		repo := newStubLogRepo()
		log := testfixtures.NewLogFixture().Persistence()
		repo.add(log)
		service := NewLogService(repo, newStubMedicationRepo(), time.UTC, nil, clock.NowFunc(), nil)

		notes := "took late"
		updated, err := service.UpdateLog(context.Background(), log.ID, LogUpdate{Notes: &notes})
		if err != nil {
			t.Fatalf("UpdateLog returned error: %v", err)
		}
		if updated.Notes == nil || *updated.Notes != "took late" {
			t.Fatalf("unexpected notes: %v", updated.Notes)
		}
		if updated.Status != log.Status {
			t.Fatalf("untouched fields must survive the merge")
		}
	})

	t.Run("rejects invalid status", func(t *testing.T) {
		repo := newStubLogRepo()
		log := testfixtures.NewLogFixture().Persistence()
		repo.add(log)
		service := NewLogService(repo, newStubMedicationRepo(), time.UTC, nil, clock.NowFunc(), nil)

		bad := persistence.LogStatus("unknown")
		_, err := service.UpdateLog(context.Background(), log.ID, LogUpdate{Status: &bad})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestLogService_DeleteLog(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	repo := newStubLogRepo()
	log := testfixtures.NewLogFixture().Persistence()
	repo.add(log)
	service := NewLogService(repo, newStubMedicationRepo(), time.UTC, nil, clock.NowFunc(), nil)

	if err := service.DeleteLog(context.Background(), log.ID); err != nil {
		t.Fatalf("DeleteLog returned error: %v", err)
	}
	if err := service.DeleteLog(context.Background(), log.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeat delete, got %v", err)
	}
}
