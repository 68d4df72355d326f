package occurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTimeOfDay indicates a time-of-day value is not a valid HH:MM string.
var ErrInvalidTimeOfDay = errors.New("occurrence: invalid time of day")

// Engine expands a medication's time-of-day set into concrete scheduled
// instants on a given calendar day.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that evaluates calendar days in the provided
// location. If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

// Location returns the engine's evaluation timezone.
func (e *Engine) Location() *time.Location {
	return e.location
}

// DayOf truncates an instant to midnight of its calendar day in the engine's
// location.
func (e *Engine) DayOf(t time.Time) time.Time {
	y, m, d := t.In(e.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.location)
}

// InWindow reports whether the calendar day falls inside the inclusive
// [start, end] window. A nil end leaves the window open-ended.
func (e *Engine) InWindow(start time.Time, end *time.Time, day time.Time) bool {
	day = e.DayOf(day)
	if day.Before(e.DayOf(start)) {
		return false
	}
	if end != nil && day.After(e.DayOf(*end)) {
		return false
	}
	return true
}

// Expand combines the calendar day with each HH:MM value, producing scheduled
// instants with seconds zeroed. Duplicate time values yield one instant; the
// input order is preserved otherwise.
func (e *Engine) Expand(day time.Time, times []string) ([]time.Time, error) {
	y, m, d := day.In(e.location).Date()

	seen := make(map[string]struct{}, len(times))
	instants := make([]time.Time, 0, len(times))
	for _, value := range times {
		hour, minute, err := ParseTimeOfDay(value)
		if err != nil {
			return nil, err
		}
		key := fmt.Sprintf("%02d:%02d", hour, minute)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		instants = append(instants, time.Date(y, m, d, hour, minute, 0, 0, e.location))
	}
	return instants, nil
}

// ParseTimeOfDay parses a strict HH:MM value into hour and minute components.
func ParseTimeOfDay(value string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, value)
	}
	return hour, minute, nil
}
