package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/pilltime/internal/reminder"
)

// subscriptionRetention is how long an unused push subscription is kept
// before the daily sweep forgets it.
const subscriptionRetention = 90 * 24 * time.Hour

type generator interface {
	GenerateForDate(ctx context.Context, day time.Time) (int, error)
}

type sweeper interface {
	MarkMissed(ctx context.Context, now time.Time) (int64, error)
}

type notifier interface {
	CheckAndNotifyDue(ctx context.Context, now time.Time) (reminder.DispatchResult, error)
}

type subscriptionJanitor interface {
	DeleteSubscriptionsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Engine owns the periodic cadences of the reminder subsystem: occurrence
// generation at startup and midnight, the hourly missed sweep, and the
// per-minute notification dispatch. The engine itself keeps no persistent
// state; every cadence derives its decisions from the wall clock and the
// store, so a restart loses nothing beyond the narrow per-minute window.
type Engine struct {
	generator generator
	sweeper   sweeper
	notifier  notifier
	subs      subscriptionJanitor
	location  *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

// NewEngine constructs a trigger engine with the provided dependencies.
func NewEngine(gen generator, sw sweeper, nt notifier, subs subscriptionJanitor, loc *time.Location, now func() time.Time, logger *slog.Logger) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		generator: gen,
		sweeper:   sw,
		notifier:  nt,
		subs:      subs,
		location:  loc,
		now:       now,
		logger:    logger.With("service", "TriggerEngine"),
	}
}

// Run performs the startup pass and then drives the periodic cadences until
// the context is canceled. In-flight cadence work runs on a detached context
// so shutdown lets it finish rather than interrupting a write mid-flight.
func (e *Engine) Run(ctx context.Context) {
	e.logger.InfoContext(ctx, "trigger engine starting")
	e.runStartup(ctx)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		e.minuteLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		e.hourLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		e.midnightLoop(ctx)
	}()
	wg.Wait()

	e.logger.Info("trigger engine stopped")
}

// runStartup covers the rolling two-day horizon and clears any backlog of
// overdue entries accumulated while the process was down.
func (e *Engine) runStartup(ctx context.Context) {
	tick := context.WithoutCancel(ctx)
	today := e.dayOf(e.now())

	if _, err := e.generator.GenerateForDate(tick, today); err != nil {
		e.logger.ErrorContext(ctx, "startup generation failed", "date", today.Format("2006-01-02"), "error", err)
	}
	tomorrow := today.AddDate(0, 0, 1)
	if _, err := e.generator.GenerateForDate(tick, tomorrow); err != nil {
		e.logger.ErrorContext(ctx, "startup generation failed", "date", tomorrow.Format("2006-01-02"), "error", err)
	}
	if _, err := e.sweeper.MarkMissed(tick, e.now()); err != nil {
		e.logger.ErrorContext(ctx, "startup missed sweep failed", "error", err)
	}
}

// minuteLoop dispatches notifications once per wall-clock minute. The first
// tick is aligned to the next minute boundary so due matching stays exact.
func (e *Engine) minuteLoop(ctx context.Context) {
	now := e.now()
	align := time.NewTimer(now.Truncate(time.Minute).Add(time.Minute).Sub(now))
	defer align.Stop()

	select {
	case <-ctx.Done():
		return
	case <-align.C:
	}

	e.notifyTick(ctx)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.notifyTick(ctx)
		}
	}
}

func (e *Engine) notifyTick(ctx context.Context) {
	if _, err := e.notifier.CheckAndNotifyDue(context.WithoutCancel(ctx), e.now()); err != nil {
		e.logger.ErrorContext(ctx, "notification dispatch failed", "error", err)
	}
}

// hourLoop runs the missed sweep every hour.
func (e *Engine) hourLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.sweeper.MarkMissed(context.WithoutCancel(ctx), e.now()); err != nil {
				e.logger.ErrorContext(ctx, "hourly missed sweep failed", "error", err)
			}
		}
	}
}

// midnightLoop generates tomorrow's occurrences and sweeps stale push
// subscriptions each day at 00:00 in the engine's location.
func (e *Engine) midnightLoop(ctx context.Context) {
	for {
		now := e.now()
		timer := time.NewTimer(NextMidnight(now, e.location).Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		tick := context.WithoutCancel(ctx)
		tomorrow := e.dayOf(e.now()).AddDate(0, 0, 1)
		if _, err := e.generator.GenerateForDate(tick, tomorrow); err != nil {
			e.logger.ErrorContext(ctx, "midnight generation failed", "date", tomorrow.Format("2006-01-02"), "error", err)
		}

		cutoff := e.now().Add(-subscriptionRetention)
		removed, err := e.subs.DeleteSubscriptionsOlderThan(tick, cutoff)
		if err != nil {
			e.logger.ErrorContext(ctx, "subscription retention sweep failed", "error", err)
		} else if removed > 0 {
			e.logger.InfoContext(ctx, "removed stale subscriptions", "count", removed)
		}
	}
}

func (e *Engine) dayOf(t time.Time) time.Time {
	y, m, d := t.In(e.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.location)
}

// NextMidnight returns the first instant of the next calendar day in loc.
func NextMidnight(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).AddDate(0, 0, 1)
}
