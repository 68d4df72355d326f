package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/pilltime/internal/persistence"
	"github.com/example/pilltime/internal/testfixtures"
)

func TestMedicationRepository_CreateAndGet(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	fixture := testfixtures.NewMedicationFixture(
		testfixtures.WithMedicationTimes("08:00", "20:00"),
		testfixtures.WithMedicationNotes("with food"),
	)
	medication := fixture.Persistence()

	if err := harness.Medications.CreateMedication(ctx, medication); err != nil {
		t.Fatalf("CreateMedication returned error: %v", err)
	}

	stored, err := harness.Medications.GetMedication(ctx, medication.ID)
	if err != nil {
		t.Fatalf("GetMedication returned error: %v", err)
	}

	if stored.Name != medication.Name {
		t.Fatalf("expected name %q, got %q", medication.Name, stored.Name)
	}
	if len(stored.Times) != 2 || stored.Times[0] != "08:00" || stored.Times[1] != "20:00" {
		t.Fatalf("unexpected times: %v", stored.Times)
	}
	if !stored.StartDate.Equal(medication.StartDate) {
		t.Fatalf("expected start date %s, got %s", medication.StartDate, stored.StartDate)
	}
	if stored.Notes == nil || *stored.Notes != "with food" {
		t.Fatalf("unexpected notes: %v", stored.Notes)
	}
	if !stored.Active {
		t.Fatalf("expected medication to be active")
	}
}

func TestMedicationRepository_DuplicateID(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	medication := testfixtures.NewMedicationFixture().Persistence()
	if err := harness.Medications.CreateMedication(ctx, medication); err != nil {
		t.Fatalf("CreateMedication returned error: %v", err)
	}
	if err := harness.Medications.CreateMedication(ctx, medication); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestMedicationRepository_EmptyTimesRejected(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)

	medication := testfixtures.NewMedicationFixture(testfixtures.WithMedicationTimes()).Persistence()
	err := harness.Medications.CreateMedication(context.Background(), medication)
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
}

func TestMedicationRepository_GetMissing(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)

	if _, err := harness.Medications.GetMedication(context.Background(), "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMedicationRepository_Update(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	medication := testfixtures.NewMedicationFixture().Persistence()
	if err := harness.Medications.CreateMedication(ctx, medication); err != nil {
		t.Fatalf("CreateMedication returned error: %v", err)
	}

	medication.Name = "Renamed"
	medication.Active = false
	medication.Times = []string{"12:00"}
	if err := harness.Medications.UpdateMedication(ctx, medication); err != nil {
		t.Fatalf("UpdateMedication returned error: %v", err)
	}

	stored, err := harness.Medications.GetMedication(ctx, medication.ID)
	if err != nil {
		t.Fatalf("GetMedication returned error: %v", err)
	}
	if stored.Name != "Renamed" || stored.Active || len(stored.Times) != 1 {
		t.Fatalf("update not applied: %+v", stored)
	}

	missing := testfixtures.NewMedicationFixture().Persistence()
	if err := harness.Medications.UpdateMedication(ctx, missing); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown medication, got %v", err)
	}
}

func TestMedicationRepository_ListActiveForDate(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	day := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)

	inWindow := testfixtures.NewMedicationFixture(
		testfixtures.WithMedicationStartDate(day.AddDate(0, 0, -1)),
	).Persistence()
	endsToday := testfixtures.NewMedicationFixture(
		testfixtures.WithMedicationStartDate(day.AddDate(0, 0, -10)),
		testfixtures.WithMedicationEndDate(day),
	).Persistence()
	ended := testfixtures.NewMedicationFixture(
		testfixtures.WithMedicationStartDate(day.AddDate(0, 0, -10)),
		testfixtures.WithMedicationEndDate(day.AddDate(0, 0, -1)),
	).Persistence()
	notStarted := testfixtures.NewMedicationFixture(
		testfixtures.WithMedicationStartDate(day.AddDate(0, 0, 1)),
	).Persistence()
	inactive := testfixtures.NewMedicationFixture(
		testfixtures.WithMedicationStartDate(day.AddDate(0, 0, -1)),
		testfixtures.WithMedicationActive(false),
	).Persistence()

	for _, medication := range []persistence.Medication{inWindow, endsToday, ended, notStarted, inactive} {
		if err := harness.Medications.CreateMedication(ctx, medication); err != nil {
			t.Fatalf("CreateMedication returned error: %v", err)
		}
	}

	active, err := harness.Medications.ListActiveForDate(ctx, day)
	if err != nil {
		t.Fatalf("ListActiveForDate returned error: %v", err)
	}

	ids := make(map[string]bool, len(active))
	for _, medication := range active {
		ids[medication.ID] = true
	}
	if len(active) != 2 || !ids[inWindow.ID] || !ids[endsToday.ID] {
		t.Fatalf("unexpected active set: %v", ids)
	}
}

func TestMedicationRepository_DeleteCascadesLogs(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	medication := testfixtures.NewMedicationFixture().Persistence()
	if err := harness.Medications.CreateMedication(ctx, medication); err != nil {
		t.Fatalf("CreateMedication returned error: %v", err)
	}

	log := testfixtures.NewLogFixture(testfixtures.WithLogMedicationID(medication.ID)).Persistence()
	if err := harness.Logs.CreateLog(ctx, log); err != nil {
		t.Fatalf("CreateLog returned error: %v", err)
	}

	if err := harness.Medications.DeleteMedication(ctx, medication.ID); err != nil {
		t.Fatalf("DeleteMedication returned error: %v", err)
	}

	if _, err := harness.Logs.GetLog(ctx, log.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected cascade delete of logs, got %v", err)
	}

	if err := harness.Medications.DeleteMedication(ctx, medication.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeat delete, got %v", err)
	}
}
