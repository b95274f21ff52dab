package model

import "time"

// NotificationPreference is a user's daily-reminder opt-in record.
// EmailFallback, when set, receives a best-effort email after a
// successful push delivery.
type NotificationPreference struct {
	UserID        string    `json:"user_id"`
	Enabled       bool      `json:"enabled"`
	EmailFallback string    `json:"email_fallback,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SubscriptionKeys are the client keys of a Web Push subscription.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscription identifies where and how to deliver a push
// notification for a user. A user has at most one; a later
// registration replaces the earlier one.
type PushSubscription struct {
	UserID    string           `json:"user_id"`
	Endpoint  string           `json:"endpoint"`
	Keys      SubscriptionKeys `json:"keys"`
	CreatedAt time.Time        `json:"created_at"`
}
