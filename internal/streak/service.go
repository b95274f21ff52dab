package streak

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/daymark-app/daymark/internal/model"
	"github.com/daymark-app/daymark/internal/store"
	ws "github.com/daymark-app/daymark/internal/websocket"
)

// Service binds the streak transitions to the store. The entry
// persistence layer calls OnEntryCreated; read paths call Current.
type Service struct {
	store  *store.StreakStore
	hub    *ws.Hub
	logger *slog.Logger
}

func NewService(st *store.StreakStore, hub *ws.Hub, logger *slog.Logger) *Service {
	return &Service{store: st, hub: hub, logger: logger}
}

// OnEntryCreated advances the user's streak for the calendar day of
// the given timestamp and returns the updated record.
func (s *Service) OnEntryCreated(userID string, at time.Time) (model.StreakRecord, error) {
	rec, err := s.store.Get(userID)
	if err != nil {
		return model.StreakRecord{}, fmt.Errorf("load streak: %w", err)
	}

	updated := Advance(rec, DateString(at))
	if err := s.store.Set(updated); err != nil {
		return model.StreakRecord{}, fmt.Errorf("save streak: %w", err)
	}

	s.broadcast(updated)
	return updated, nil
}

// Current returns the user's streak as of now, applying the decay
// check. A stale streak is persisted as reset so the user sees zero
// without needing to write first.
func (s *Service) Current(userID string, now time.Time) (model.StreakRecord, error) {
	rec, err := s.store.Get(userID)
	if err != nil {
		return model.StreakRecord{}, fmt.Errorf("load streak: %w", err)
	}

	decayed, changed := Decay(rec, DateString(now))
	if changed {
		if err := s.store.Set(decayed); err != nil {
			return model.StreakRecord{}, fmt.Errorf("persist streak decay: %w", err)
		}
		s.broadcast(decayed)
	}
	return decayed, nil
}

func (s *Service) broadcast(rec model.StreakRecord) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(ws.Message{
		Type:   "streak_updated",
		UserID: rec.UserID,
		Extra: map[string]any{
			"current_streak":  rec.CurrentStreak,
			"last_entry_date": rec.LastEntryDate,
		},
	})
}
