package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/pilltime/internal/persistence"
	"github.com/example/pilltime/internal/testfixtures"
)

type stubMedicationRepo struct {
	medications map[string]persistence.Medication
	createErr   error
}

func newStubMedicationRepo() *stubMedicationRepo {
	return &stubMedicationRepo{medications: make(map[string]persistence.Medication)}
}

func (s *stubMedicationRepo) CreateMedication(_ context.Context, medication persistence.Medication) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.medications[medication.ID] = medication
	return nil
}

func (s *stubMedicationRepo) UpdateMedication(_ context.Context, medication persistence.Medication) error {
	if _, ok := s.medications[medication.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.medications[medication.ID] = medication
	return nil
}

func (s *stubMedicationRepo) GetMedication(_ context.Context, id string) (persistence.Medication, error) {
	medication, ok := s.medications[id]
	if !ok {
		return persistence.Medication{}, persistence.ErrNotFound
	}
	return medication, nil
}

func (s *stubMedicationRepo) ListMedications(_ context.Context) ([]persistence.Medication, error) {
	out := make([]persistence.Medication, 0, len(s.medications))
	for _, medication := range s.medications {
		out = append(out, medication)
	}
	return out, nil
}

func (s *stubMedicationRepo) ListActiveForDate(_ context.Context, _ time.Time) ([]persistence.Medication, error) {
	return nil, nil
}

func (s *stubMedicationRepo) DeleteMedication(_ context.Context, id string) error {
	if _, ok := s.medications[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.medications, id)
	return nil
}

type stubGenerator struct {
	calls []string
	err   error
}

func (s *stubGenerator) GenerateForMedication(_ context.Context, id string) (int, error) {
	s.calls = append(s.calls, id)
	if s.err != nil {
		return 0, s.err
	}
	return 2, nil
}

func fixedID(id string) func() string {
	return func() string { return id }
}

func validInput() MedicationInput {
	dosage := "100 mg"
	return MedicationInput{
		Name:      "Aspirin",
		Dosage:    &dosage,
		Frequency: "daily",
		Times:     []string{"08:00", "20:00"},
		StartDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMedicationService_CreateMedication(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})

	t.Run("persists and regenerates occurrences", func(t *testing.T) {
		repo := newStubMedicationRepo()
		gen := &stubGenerator{}
		service := NewMedicationService(repo, gen, fixedID("medication-001"), clock.NowFunc(), nil)

		medication, err := service.CreateMedication(context.Background(), validInput())
		if err != nil {
			t.Fatalf("CreateMedication returned error: %v", err)
		}
		if medication.ID != "medication-001" {
			t.Fatalf("unexpected id %q", medication.ID)
		}
		if !medication.Active {
			t.Fatalf("new medications must start active")
		}
		if len(gen.calls) != 1 || gen.calls[0] != "medication-001" {
			t.Fatalf("expected regeneration for the new medication, got %v", gen.calls)
		}
		if _, ok := repo.medications["medication-001"]; !ok {
			t.Fatalf("medication was not persisted")
		}
	})

	t.Run("generation failure does not fail the create", func(t *testing.T) {
		repo := newStubMedicationRepo()
		gen := &stubGenerator{err: errors.New("generation down")}
		service := NewMedicationService(repo, gen, fixedID("medication-001"), clock.NowFunc(), nil)

		if _, err := service.CreateMedication(context.Background(), validInput()); err != nil {
			t.Fatalf("expected create to succeed despite generation failure, got %v", err)
		}
	})

	t.Run("validation failures", func(t *testing.T) {
		cases := []struct {
			name  string
			field string
			mod   func(*MedicationInput)
		}{
			{"missing name", "name", func(in *MedicationInput) { in.Name = " " }},
			{"no times", "times", func(in *MedicationInput) { in.Times = nil }},
			{"malformed time", "times", func(in *MedicationInput) { in.Times = []string{"8am"} }},
			{"missing start", "start_date", func(in *MedicationInput) { in.StartDate = time.Time{} }},
			{"end before start", "end_date", func(in *MedicationInput) {
				end := in.StartDate.AddDate(0, 0, -1)
				in.EndDate = &end
			}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				repo := newStubMedicationRepo()
				service := NewMedicationService(repo, &stubGenerator{}, nil, clock.NowFunc(), nil)

				input := validInput()
				tc.mod(&input)

				_, err := service.CreateMedication(context.Background(), input)
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected validation error, got %v", err)
				}
				if _, ok := vErr.FieldErrors[tc.field]; !ok {
					t.Fatalf("expected error on field %q, got %v", tc.field, vErr.FieldErrors)
				}
				if len(repo.medications) != 0 {
					t.Fatalf("invalid input must not persist")
				}
			})
		}
	})
}

func TestMedicationService_UpdateMedication(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})

	seed := func(repo *stubMedicationRepo) persistence.Medication {
		medication := testfixtures.NewMedicationFixture().Persistence()
		repo.medications[medication.ID] = medication
		return medication
	}

	t.Run("merges partial update", func(t *testing.T) {
		repo := newStubMedicationRepo()
		medication := seed(repo)
		service := NewMedicationService(repo, &stubGenerator{}, nil, clock.NowFunc(), nil)

		name := "Renamed"
		updated, err := service.UpdateMedication(context.Background(), medication.ID, MedicationUpdate{Name: &name})
		if err != nil {
			t.Fatalf("UpdateMedication returned error: %v", err)
		}
		if updated.Name != "Renamed" {
			t.Fatalf("expected renamed medication, got %q", updated.Name)
		}
		if len(updated.Times) != len(medication.Times) {
			t.Fatalf("untouched fields must survive the merge")
		}
	})

	t.Run("regenerates when times change", func(t *testing.T) {
		repo := newStubMedicationRepo()
		medication := seed(repo)
		gen := &stubGenerator{}
		service := NewMedicationService(repo, gen, nil, clock.NowFunc(), nil)

		if _, err := service.UpdateMedication(context.Background(), medication.ID, MedicationUpdate{Times: []string{"09:00"}}); err != nil {
			t.Fatalf("UpdateMedication returned error: %v", err)
		}
		if len(gen.calls) != 1 {
			t.Fatalf("expected regeneration after times change, got %d calls", len(gen.calls))
		}
	})

	t.Run("regenerates on reactivation", func(t *testing.T) {
		repo := newStubMedicationRepo()
		medication := testfixtures.NewMedicationFixture(testfixtures.WithMedicationActive(false)).Persistence()
		repo.medications[medication.ID] = medication
		gen := &stubGenerator{}
		service := NewMedicationService(repo, gen, nil, clock.NowFunc(), nil)

		active := true
		if _, err := service.UpdateMedication(context.Background(), medication.ID, MedicationUpdate{Active: &active}); err != nil {
			t.Fatalf("UpdateMedication returned error: %v", err)
		}
		if len(gen.calls) != 1 {
			t.Fatalf("expected regeneration after reactivation")
		}
	})

	t.Run("no regeneration for unrelated changes", func(t *testing.T) {
		repo := newStubMedicationRepo()
		medication := seed(repo)
		gen := &stubGenerator{}
		service := NewMedicationService(repo, gen, nil, clock.NowFunc(), nil)

		notes := "after dinner"
		if _, err := service.UpdateMedication(context.Background(), medication.ID, MedicationUpdate{Notes: &notes}); err != nil {
			t.Fatalf("UpdateMedication returned error: %v", err)
		}
		inactive := false
		if _, err := service.UpdateMedication(context.Background(), medication.ID, MedicationUpdate{Active: &inactive}); err != nil {
			t.Fatalf("UpdateMedication returned error: %v", err)
		}
		if len(gen.calls) != 0 {
			t.Fatalf("expected no regeneration, got %d calls", len(gen.calls))
		}
	})

	t.Run("clears end date when explicitly set", func(t *testing.T) {
		repo := newStubMedicationRepo()
		medication := testfixtures.NewMedicationFixture(
			testfixtures.WithMedicationEndDate(time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)),
		).Persistence()
		repo.medications[medication.ID] = medication
		service := NewMedicationService(repo, &stubGenerator{}, nil, clock.NowFunc(), nil)

		updated, err := service.UpdateMedication(context.Background(), medication.ID, MedicationUpdate{EndDateSet: true})
		if err != nil {
			t.Fatalf("UpdateMedication returned error: %v", err)
		}
		if updated.EndDate != nil {
			t.Fatalf("expected end date cleared, got %v", updated.EndDate)
		}
	})

	t.Run("unknown medication maps to ErrNotFound", func(t *testing.T) {
		service := NewMedicationService(newStubMedicationRepo(), &stubGenerator{}, nil, clock.NowFunc(), nil)
		if _, err := service.UpdateMedication(context.Background(), "missing", MedicationUpdate{}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestMedicationService_Delete(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	repo := newStubMedicationRepo()
	medication := testfixtures.NewMedicationFixture().Persistence()
	repo.medications[medication.ID] = medication
	service := NewMedicationService(repo, &stubGenerator{}, nil, clock.NowFunc(), nil)

	if err := service.DeleteMedication(context.Background(), medication.ID); err != nil {
		t.Fatalf("DeleteMedication returned error: %v", err)
	}
	if err := service.DeleteMedication(context.Background(), medication.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeat delete, got %v", err)
	}
}
