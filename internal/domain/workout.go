package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the outcome of a workout occurrence.
type Status string

const (
	StatusDone   Status = "done"
	StatusMissed Status = "missed"
)

// ParseStatus normalizes s into a workout status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusDone, StatusMissed:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
}

// WorkoutLog records the outcome of one occurrence. At most one log exists per
// (ChatID, At); writing again overwrites.
type WorkoutLog struct {
	ChatID   int64
	At       time.Time // occurrence instant, truncated to the minute
	Status   Status
	Duration *int // minutes
	Notes    *string
}

// Validate normalizes At and checks status and duration.
func (l *WorkoutLog) Validate() error {
	if _, err := ParseStatus(string(l.Status)); err != nil {
		return err
	}
	if l.Duration != nil && *l.Duration < 0 {
		return fmt.Errorf("%w: duration must be >= 0", ErrValidation)
	}
	l.At = OccurrenceKey(l.At)
	return nil
}

// OccurrenceKey truncates t to the minute, the granularity logs are keyed by.
func OccurrenceKey(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

// WorkoutStats counts logs by status.
type WorkoutStats struct {
	Done   int
	Missed int
}

// WeightEntry is one body weight measurement. Entries are append-only.
type WeightEntry struct {
	ChatID int64
	At     time.Time
	Weight float64 // kg
}
