package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/daymark-app/daymark/internal/model"
)

type PreferenceStore struct {
	db *sql.DB
}

func NewPreferenceStore(db *sql.DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

// prefPayload is the canonical on-disk encoding of a preference record.
type prefPayload struct {
	Enabled       bool   `json:"enabled"`
	EmailFallback string `json:"email_fallback,omitempty"`
}

// Set upserts the preference record for a user, re-serializing to the
// canonical JSON form regardless of what was stored before.
func (s *PreferenceStore) Set(userID string, enabled bool, emailFallback string) error {
	payload, err := json.Marshal(prefPayload{Enabled: enabled, EmailFallback: emailFallback})
	if err != nil {
		return fmt.Errorf("marshal preference: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO user_prefs (user_id, payload, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		userID, string(payload),
	)
	if err != nil {
		return fmt.Errorf("set preference: %w", err)
	}
	return nil
}

// Get returns the preference record for a user, defaulting to disabled
// when none was ever set. Historical writers were not consistent about
// encoding, so the stored payload is decoded defensively rather than
// assumed to be a JSON object.
func (s *PreferenceStore) Get(userID string) (model.NotificationPreference, error) {
	pref := model.NotificationPreference{UserID: userID}

	var raw string
	err := s.db.QueryRow(`SELECT payload FROM user_prefs WHERE user_id = ?`, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return pref, nil
	}
	if err != nil {
		return pref, fmt.Errorf("get preference: %w", err)
	}

	p := decodePreference(raw)
	pref.Enabled = p.Enabled
	pref.EmailFallback = p.EmailFallback
	return pref, nil
}

// decodePreference normalizes the stored payload. It accepts the
// canonical JSON object, a double-encoded JSON string containing that
// object, and bare truthy/falsy scalars left behind by older writers.
func decodePreference(raw string) prefPayload {
	raw = strings.TrimSpace(raw)

	var p prefPayload
	if err := json.Unmarshal([]byte(raw), &p); err == nil && strings.HasPrefix(raw, "{") {
		return p
	}

	// A JSON string wrapping the object ("{\"enabled\":true}").
	var inner string
	if err := json.Unmarshal([]byte(raw), &inner); err == nil {
		if err := json.Unmarshal([]byte(inner), &p); err == nil {
			return p
		}
		raw = inner
	}

	switch strings.ToLower(raw) {
	case "1", "true", "enabled", "on":
		return prefPayload{Enabled: true}
	}
	return prefPayload{}
}
