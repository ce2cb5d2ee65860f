package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrValidation marks malformed or missing input. Wrapped errors carry the
// detail; match with errors.Is.
var ErrValidation = errors.New("validation failed")

// Interval is a half-open time window [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds the window [start, start+durationMinutes).
func NewInterval(start time.Time, durationMinutes int) (Interval, error) {
	if start.IsZero() {
		return Interval{}, fmt.Errorf("%w: start time is required", ErrValidation)
	}
	if durationMinutes <= 0 {
		return Interval{}, fmt.Errorf("%w: duration must be a positive number of minutes", ErrValidation)
	}
	return Interval{
		Start: start,
		End:   start.Add(time.Duration(durationMinutes) * time.Minute),
	}, nil
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching endpoints ([10:00,11:00) and [11:00,12:00)) do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Duration returns the window length.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}
