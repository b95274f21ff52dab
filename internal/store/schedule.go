package store

import (
	"database/sql"
	"fmt"

	"github.com/daymark-app/daymark/internal/model"
)

// ScheduleStore is the time-ordered reminder index: one row per user,
// scored by next-run epoch millis. It is the single source of truth
// for "who is due".
type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// ScheduleAt inserts or moves the user's single schedule entry to the
// given time. Calling it twice leaves exactly one entry, at the later
// call's time.
func (s *ScheduleStore) ScheduleAt(userID string, whenMillis int64) error {
	_, err := s.db.Exec(
		`INSERT INTO scheduled_notifications (user_id, next_run_ms)
		 VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET next_run_ms = excluded.next_run_ms`,
		userID, whenMillis,
	)
	if err != nil {
		return fmt.Errorf("schedule at: %w", err)
	}
	return nil
}

// Due returns all entries with next_run_ms <= now, ascending by score.
// Ordering between equal scores is unspecified.
func (s *ScheduleStore) Due(nowMillis int64) ([]model.ScheduleEntry, error) {
	rows, err := s.db.Query(
		`SELECT user_id, next_run_ms FROM scheduled_notifications
		 WHERE next_run_ms <= ? ORDER BY next_run_ms ASC`, nowMillis,
	)
	if err != nil {
		return nil, fmt.Errorf("list due entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Claim atomically removes and returns all due entries. The harvester
// claims before delivering so that a crash mid-delivery costs at most
// one missed reminder instead of a duplicate one; entries that fail
// transiently are re-inserted by the caller.
func (s *ScheduleStore) Claim(nowMillis int64) ([]model.ScheduleEntry, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT user_id, next_run_ms FROM scheduled_notifications
		 WHERE next_run_ms <= ? ORDER BY next_run_ms ASC`, nowMillis,
	)
	if err != nil {
		return nil, fmt.Errorf("select due entries: %w", err)
	}
	entries, err := scanEntries(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	if _, err := tx.Exec(`DELETE FROM scheduled_notifications WHERE next_run_ms <= ?`, nowMillis); err != nil {
		return nil, fmt.Errorf("claim due entries: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return entries, nil
}

// Remove deletes the user's schedule entry. No-op if absent.
func (s *ScheduleStore) Remove(userID string) error {
	_, err := s.db.Exec(`DELETE FROM scheduled_notifications WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("remove schedule entry: %w", err)
	}
	return nil
}

func scanEntries(rows *sql.Rows) ([]model.ScheduleEntry, error) {
	var entries []model.ScheduleEntry
	for rows.Next() {
		var e model.ScheduleEntry
		if err := rows.Scan(&e.UserID, &e.NextRunMillis); err != nil {
			return nil, fmt.Errorf("scan schedule entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
