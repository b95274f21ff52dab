package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/daymark-app/daymark/internal/auth"
	"github.com/daymark-app/daymark/internal/streak"
)

// StreakHandler exposes the writing streak: a read path for the
// dashboard and the hook the entry persistence service calls when a
// journal entry is created.
type StreakHandler struct {
	service *streak.Service
	logger  *slog.Logger
	now     func() time.Time
}

func NewStreakHandler(svc *streak.Service, logger *slog.Logger) *StreakHandler {
	return &StreakHandler{service: svc, logger: logger, now: time.Now}
}

// Current handles GET /user/streak. Reading applies the decay check,
// so a lapsed streak reads as zero even if the user never writes again.
func (h *StreakHandler) Current(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	rec, err := h.service.Current(userID, h.now())
	if err != nil {
		h.logger.Error("get streak", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch streak")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"current_streak":  rec.CurrentStreak,
		"last_entry_date": rec.LastEntryDate,
		"reflection":      streak.Reflection(rec.CurrentStreak),
	})
}

type entryCreatedRequest struct {
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at,omitempty"`
}

// EntryCreated handles POST /internal/entry-created, invoked by the
// entry persistence service after it saves a journal entry. The route
// is guarded by the shared-secret middleware.
func (h *StreakHandler) EntryCreated(w http.ResponseWriter, r *http.Request) {
	var req entryCreatedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	at := h.now()
	if req.CreatedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.CreatedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "created_at must be RFC 3339")
			return
		}
		at = parsed
	}

	rec, err := h.service.OnEntryCreated(req.UserID, at)
	if err != nil {
		h.logger.Error("advance streak", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update streak")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
