package reminder

import (
	"fmt"
	"time"
)

// NextRun computes the next occurrence of the given wall-clock time of
// day ("HH:MM") relative to now, in now's location. A target that has
// already passed today, including the exact instant it occurs, yields
// tomorrow's occurrence, so a reminder time is never used twice in the
// same instant.
func NextRun(timeOfDay string, now time.Time) (time.Time, error) {
	var hours, minutes int
	if _, err := fmt.Sscanf(timeOfDay, "%d:%d", &hours, &minutes); err != nil {
		return time.Time{}, fmt.Errorf("parse time of day %q: %w", timeOfDay, err)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return time.Time{}, fmt.Errorf("time of day %q out of range", timeOfDay)
	}

	candidate := time.Date(now.Year(), now.Month(), now.Day(), hours, minutes, 0, 0, now.Location())
	if !now.Before(candidate) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate, nil
}
