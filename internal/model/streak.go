package model

// StreakRecord is a user's consecutive-writing-day count.
// LastEntryDate is a calendar date in "2006-01-02" form, or empty when
// the user has no live streak. CurrentStreak is zero iff LastEntryDate
// is empty or stale.
type StreakRecord struct {
	UserID        string `json:"user_id"`
	CurrentStreak int    `json:"current_streak"`
	LastEntryDate string `json:"last_entry_date,omitempty"`
}
