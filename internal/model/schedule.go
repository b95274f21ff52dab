package model

// ScheduleEntry is a user's single slot in the reminder schedule.
// NextRunMillis is a Unix epoch timestamp in milliseconds.
type ScheduleEntry struct {
	UserID        string `json:"user_id"`
	NextRunMillis int64  `json:"next_run_millis"`
}
