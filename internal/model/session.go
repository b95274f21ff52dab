package model

import "time"

// Session is an authenticated browser session. Sessions are issued by
// the auth service; this service only validates them.
type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
