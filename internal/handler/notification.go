package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/daymark-app/daymark/internal/auth"
	"github.com/daymark-app/daymark/internal/reminder"
	"github.com/daymark-app/daymark/internal/store"
)

// NotificationHandler manages a user's reminder preference and push
// subscription, and keeps the schedule index in step with them.
type NotificationHandler struct {
	prefs    *store.PreferenceStore
	subs     *store.SubscriptionStore
	schedule *store.ScheduleStore
	logger   *slog.Logger

	reminderTime string
	now          func() time.Time
}

func NewNotificationHandler(prefs *store.PreferenceStore, subs *store.SubscriptionStore, schedule *store.ScheduleStore, reminderTime string, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		prefs:        prefs,
		subs:         subs,
		schedule:     schedule,
		logger:       logger,
		reminderTime: reminderTime,
		now:          time.Now,
	}
}

type subscriptionPayload struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

type updatePreferencesRequest struct {
	Enabled       bool                 `json:"enabled"`
	EmailFallback string               `json:"email_fallback,omitempty"`
	Subscription  *subscriptionPayload `json:"subscription,omitempty"`
}

// UpdatePreferences handles POST /user/notification-preferences.
// Enabling with a subscription registers the endpoint and schedules the
// next reminder; disabling removes the user from the schedule.
func (h *NotificationHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req updatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Subscription != nil {
		if req.Subscription.Endpoint == "" || req.Subscription.Keys.P256dh == "" || req.Subscription.Keys.Auth == "" {
			writeError(w, http.StatusBadRequest, "subscription requires endpoint, p256dh, and auth")
			return
		}
	}

	if err := h.prefs.Set(userID, req.Enabled, req.EmailFallback); err != nil {
		h.logger.Error("save preference", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}

	switch {
	case req.Enabled && req.Subscription != nil:
		if err := h.subs.Set(userID, req.Subscription.Endpoint, req.Subscription.Keys.P256dh, req.Subscription.Keys.Auth); err != nil {
			h.logger.Error("save subscription", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save subscription")
			return
		}

		next, err := reminder.NextRun(h.reminderTime, h.now())
		if err != nil {
			h.logger.Error("compute next run", "reminder_time", h.reminderTime, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to schedule reminder")
			return
		}
		if err := h.schedule.ScheduleAt(userID, next.UnixMilli()); err != nil {
			h.logger.Error("schedule reminder", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to schedule reminder")
			return
		}

	case !req.Enabled:
		if err := h.schedule.Remove(userID); err != nil {
			h.logger.Error("remove schedule entry", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update schedule")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetPreferences handles GET /user/notification-preferences. Users who
// never set a preference are disabled.
func (h *NotificationHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	pref, err := h.prefs.Get(userID)
	if err != nil {
		h.logger.Error("get preference", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch preferences")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"enabled": pref.Enabled})
}
