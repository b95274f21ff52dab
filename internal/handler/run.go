package handler

import (
	"log/slog"
	"net/http"

	"github.com/daymark-app/daymark/internal/reminder"
)

// RunHandler fires a harvest. The route is guarded by the cron secret
// middleware; the trigger is an external cron, not an in-process timer.
type RunHandler struct {
	harvester *reminder.Harvester
	logger    *slog.Logger
}

func NewRunHandler(h *reminder.Harvester, logger *slog.Logger) *RunHandler {
	return &RunHandler{harvester: h, logger: logger}
}

// Run handles POST /notifications/run.
func (h *RunHandler) Run(w http.ResponseWriter, r *http.Request) {
	sum, err := h.harvester.Run(r.Context())
	if err != nil {
		// Store-level failure: the whole run fails and the next cron
		// trigger retries. Per-user failures never reach here.
		h.logger.Error("harvest run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "notification run failed")
		return
	}

	if sum.Processed == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No notifications due."})
		return
	}

	writeJSON(w, http.StatusOK, sum)
}
