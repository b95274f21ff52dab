package store

import (
	"database/sql"
	"fmt"

	"github.com/daymark-app/daymark/internal/model"
)

type StreakStore struct {
	db *sql.DB
}

func NewStreakStore(db *sql.DB) *StreakStore {
	return &StreakStore{db: db}
}

// Get returns the streak record for a user. A user with no record has
// a zero streak and no last entry date.
func (s *StreakStore) Get(userID string) (model.StreakRecord, error) {
	rec := model.StreakRecord{UserID: userID}

	var lastDate sql.NullString
	err := s.db.QueryRow(
		`SELECT current_streak, last_entry_date FROM user_streaks WHERE user_id = ?`, userID,
	).Scan(&rec.CurrentStreak, &lastDate)
	if err == sql.ErrNoRows {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("get streak: %w", err)
	}
	rec.LastEntryDate = lastDate.String
	return rec, nil
}

// Set upserts the streak record. An empty LastEntryDate is persisted
// as NULL.
func (s *StreakStore) Set(rec model.StreakRecord) error {
	var lastDate any
	if rec.LastEntryDate != "" {
		lastDate = rec.LastEntryDate
	}
	_, err := s.db.Exec(
		`INSERT INTO user_streaks (user_id, current_streak, last_entry_date, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(user_id) DO UPDATE SET current_streak = excluded.current_streak, last_entry_date = excluded.last_entry_date, updated_at = excluded.updated_at`,
		rec.UserID, rec.CurrentStreak, lastDate,
	)
	if err != nil {
		return fmt.Errorf("set streak: %w", err)
	}
	return nil
}
