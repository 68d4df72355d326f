package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/pilltime/internal/persistence"
	"github.com/example/pilltime/internal/push"
	"github.com/example/pilltime/internal/testfixtures"
)

type stubDueSource struct {
	due     map[time.Time][]persistence.DueLog
	listErr error
}

func (s *stubDueSource) ListDue(_ context.Context, minute time.Time) ([]persistence.DueLog, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.due[minute.Truncate(time.Minute)], nil
}

type stubBroadcaster struct {
	payloads []push.Payload
	result   push.Result
	err      error
	failOnce bool
}

func (s *stubBroadcaster) SendToAll(_ context.Context, payload push.Payload) (push.Result, error) {
	if s.failOnce {
		s.failOnce = false
		return push.Result{}, errors.New("broadcast failed")
	}
	if s.err != nil {
		return push.Result{}, s.err
	}
	s.payloads = append(s.payloads, payload)
	return s.result, nil
}

func TestNotifier_CheckAndNotifyDue(t *testing.T) {
	minute := time.Date(2024, time.January, 10, 14, 32, 0, 0, time.UTC)
	dosage := "200 mg"
	entry := persistence.DueLog{
		LogID:        "log-001",
		MedicationID: "medication-001",
		Name:         "Ibuprofen",
		Dosage:       &dosage,
		ScheduledAt:  minute,
	}

	t.Run("notifies occurrences in the current minute", func(t *testing.T) {
		source := &stubDueSource{due: map[time.Time][]persistence.DueLog{minute: {entry}}}
		sender := &stubBroadcaster{result: push.Result{Sent: 2, Failed: 1}}
		clock := testfixtures.NewClock(minute.Add(7 * time.Second))
		notifier := NewNotifier(source, sender, clock.NowFunc(), nil)

		result, err := notifier.CheckAndNotifyDue(context.Background(), clock.Now())
		if err != nil {
			t.Fatalf("CheckAndNotifyDue returned error: %v", err)
		}
		if result.Due != 1 || result.Sent != 2 || result.Failed != 1 {
			t.Fatalf("unexpected result: %+v", result)
		}

		if len(sender.payloads) != 1 {
			t.Fatalf("expected one payload, got %d", len(sender.payloads))
		}
		payload := sender.payloads[0]
		if payload.Title != "💊 Time for Ibuprofen" {
			t.Fatalf("unexpected title %q", payload.Title)
		}
		if payload.Body != "Take 200 mg" {
			t.Fatalf("unexpected body %q", payload.Body)
		}
		if payload.Tag != "med-log-001" {
			t.Fatalf("unexpected tag %q", payload.Tag)
		}
		if payload.Data.MedicationID != "medication-001" || payload.Data.LogID != "log-001" {
			t.Fatalf("unexpected data %+v", payload.Data)
		}
		if !payload.RequireInteraction {
			t.Fatalf("expected requireInteraction to be set")
		}
	})

	t.Run("quiet minute yields nothing", func(t *testing.T) {
		source := &stubDueSource{due: map[time.Time][]persistence.DueLog{minute: {entry}}}
		sender := &stubBroadcaster{}
		clock := testfixtures.NewClock(minute.Add(time.Minute))
		notifier := NewNotifier(source, sender, clock.NowFunc(), nil)

		result, err := notifier.CheckAndNotifyDue(context.Background(), clock.Now())
		if err != nil {
			t.Fatalf("CheckAndNotifyDue returned error: %v", err)
		}
		if result.Due != 0 || len(sender.payloads) != 0 {
			t.Fatalf("expected no dispatches, got %+v", result)
		}
	})

	t.Run("one broadcast failure does not abort the rest", func(t *testing.T) {
		second := entry
		second.LogID = "log-002"
		source := &stubDueSource{due: map[time.Time][]persistence.DueLog{minute: {entry, second}}}
		sender := &stubBroadcaster{result: push.Result{Sent: 1}, failOnce: true}
		clock := testfixtures.NewClock(minute)
		notifier := NewNotifier(source, sender, clock.NowFunc(), nil)

		result, err := notifier.CheckAndNotifyDue(context.Background(), clock.Now())
		if err != nil {
			t.Fatalf("CheckAndNotifyDue returned error: %v", err)
		}
		if result.Due != 2 || result.Sent != 1 {
			t.Fatalf("unexpected result: %+v", result)
		}
	})

	t.Run("propagates query failure", func(t *testing.T) {
		source := &stubDueSource{listErr: errors.New("db down")}
		notifier := NewNotifier(source, &stubBroadcaster{}, nil, nil)
		if _, err := notifier.CheckAndNotifyDue(context.Background(), minute); err == nil {
			t.Fatalf("expected error when due query fails")
		}
	})
}

type stubMissedMarker struct {
	changed   int64
	reference time.Time
	err       error
}

func (s *stubMissedMarker) MarkMissedBefore(_ context.Context, reference time.Time) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.reference = reference
	return s.changed, nil
}

func TestSweeper_MarkMissed(t *testing.T) {
	now := time.Date(2024, time.January, 10, 15, 0, 0, 0, time.UTC)

	t.Run("reports transitioned rows", func(t *testing.T) {
		marker := &stubMissedMarker{changed: 3}
		sweeper := NewSweeper(marker, nil)

		changed, err := sweeper.MarkMissed(context.Background(), now)
		if err != nil {
			t.Fatalf("MarkMissed returned error: %v", err)
		}
		if changed != 3 {
			t.Fatalf("expected 3 changed rows, got %d", changed)
		}
		if !marker.reference.Equal(now) {
			t.Fatalf("expected reference %s, got %s", now, marker.reference)
		}
	})

	t.Run("propagates store failure", func(t *testing.T) {
		sweeper := NewSweeper(&stubMissedMarker{err: errors.New("db down")}, nil)
		if _, err := sweeper.MarkMissed(context.Background(), now); err == nil {
			t.Fatalf("expected error when sweep fails")
		}
	})
}
