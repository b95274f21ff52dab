package store

import (
	"database/sql"
	"fmt"

	"github.com/daymark-app/daymark/internal/model"
)

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// Set upserts the push subscription for a user. A later registration
// replaces the earlier one wholesale.
func (s *SubscriptionStore) Set(userID, endpoint, p256dh, auth string) error {
	_, err := s.db.Exec(
		`INSERT INTO user_subscriptions (user_id, endpoint, p256dh_key, auth_key)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET endpoint = excluded.endpoint, p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key`,
		userID, endpoint, p256dh, auth,
	)
	if err != nil {
		return fmt.Errorf("set subscription: %w", err)
	}
	return nil
}

// Get returns the subscription for a user, or nil if none exists.
func (s *SubscriptionStore) Get(userID string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.QueryRow(
		`SELECT user_id, endpoint, p256dh_key, auth_key, created_at
		 FROM user_subscriptions WHERE user_id = ?`, userID,
	).Scan(&sub.UserID, &sub.Endpoint, &sub.Keys.P256dh, &sub.Keys.Auth, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &sub, nil
}

func (s *SubscriptionStore) Delete(userID string) error {
	_, err := s.db.Exec(`DELETE FROM user_subscriptions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}
