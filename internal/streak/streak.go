package streak

import (
	"time"

	"github.com/daymark-app/daymark/internal/model"
)

// DateString formats a time as the calendar-date form used throughout
// the streak state ("2006-01-02").
func DateString(t time.Time) string {
	return t.Format("2006-01-02")
}

func yesterdayOf(today string) string {
	t, err := time.Parse("2006-01-02", today)
	if err != nil {
		return ""
	}
	return DateString(t.AddDate(0, 0, -1))
}

// Advance applies the entry-creation transition for the given day.
// A second entry on the same day leaves the streak unchanged; an entry
// the day after the last one extends it; anything else starts over at 1.
func Advance(rec model.StreakRecord, today string) model.StreakRecord {
	switch rec.LastEntryDate {
	case today:
		return rec
	case yesterdayOf(today):
		rec.CurrentStreak++
	default:
		rec.CurrentStreak = 1
	}
	rec.LastEntryDate = today
	return rec
}

// Decay applies the read-time staleness check. A streak whose last
// entry is neither today nor yesterday is over, regardless of whether
// the user ever writes again; it reports changed=true so the caller
// can persist the reset.
func Decay(rec model.StreakRecord, today string) (model.StreakRecord, bool) {
	if rec.LastEntryDate == "" {
		if rec.CurrentStreak != 0 {
			rec.CurrentStreak = 0
			return rec, true
		}
		return rec, false
	}
	if rec.LastEntryDate == today || rec.LastEntryDate == yesterdayOf(today) {
		return rec, false
	}
	rec.CurrentStreak = 0
	rec.LastEntryDate = ""
	return rec, true
}

// Reflection returns a calm acknowledgment message for the given
// streak count. No hype, no guilt.
func Reflection(currentStreak int) string {
	switch {
	case currentStreak == 0:
		return "Every streak starts somewhere. Today is as good a day as any."
	case currentStreak <= 3:
		return "You're here again. That's what matters."
	case currentStreak <= 7:
		return "A few days in. You're finding your rhythm."
	case currentStreak <= 14:
		return "This is becoming part of your routine."
	case currentStreak <= 30:
		return "Writing regularly is just something you do now."
	default:
		return "You've built something real here. This is who you are."
	}
}
