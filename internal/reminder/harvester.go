package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/daymark-app/daymark/internal/model"
	"github.com/daymark-app/daymark/internal/push"
	"github.com/daymark-app/daymark/internal/store"
	ws "github.com/daymark-app/daymark/internal/websocket"
)

const (
	// DefaultReminderTime is the canonical daily reminder time.
	DefaultReminderTime = "20:00"

	defaultDeliveryTimeout = 10 * time.Second
)

// Pusher delivers a push notification. push.Service implements it; a
// fake stands in for it in tests.
type Pusher interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload push.Payload) error
}

// Mailer sends the best-effort fallback email. email.Client implements it.
type Mailer interface {
	Configured() bool
	SendReminderEmail(to string) error
}

// Summary reports the outcome of a single harvest run.
type Summary struct {
	Processed    int `json:"processed"`
	Delivered    int `json:"delivered"`
	Deregistered int `json:"deregistered"`
	Failed       int `json:"failed"`
}

// Harvester processes due reminder schedule entries. Each invocation
// is a single batch: claim due entries, attempt delivery per user, and
// either reschedule, deregister, or re-queue. It keeps no state between
// invocations, so overlapping or repeated triggers are safe.
type Harvester struct {
	schedule *store.ScheduleStore
	prefs    *store.PreferenceStore
	subs     *store.SubscriptionStore
	pusher   Pusher
	mailer   Mailer
	hub      *ws.Hub
	logger   *slog.Logger

	reminderTime    string
	deliveryTimeout time.Duration
	now             func() time.Time
}

// Option configures a Harvester.
type Option func(*Harvester)

// WithMailer enables the fallback email after a successful push.
func WithMailer(m Mailer) Option {
	return func(h *Harvester) { h.mailer = m }
}

// WithHub enables run-summary broadcasts to connected clients.
func WithHub(hub *ws.Hub) Option {
	return func(h *Harvester) { h.hub = hub }
}

// WithReminderTime overrides the daily reminder time ("HH:MM").
func WithReminderTime(t string) Option {
	return func(h *Harvester) { h.reminderTime = t }
}

// WithDeliveryTimeout overrides the per-delivery timeout.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(h *Harvester) { h.deliveryTimeout = d }
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(h *Harvester) { h.now = now }
}

// NewHarvester creates a harvester over the given stores and push sender.
func NewHarvester(schedule *store.ScheduleStore, prefs *store.PreferenceStore, subs *store.SubscriptionStore, pusher Pusher, logger *slog.Logger, opts ...Option) *Harvester {
	h := &Harvester{
		schedule:        schedule,
		prefs:           prefs,
		subs:            subs,
		pusher:          pusher,
		logger:          logger,
		reminderTime:    DefaultReminderTime,
		deliveryTimeout: defaultDeliveryTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes one harvest. Due entries are claimed (atomically
// removed from the schedule) before any delivery is attempted, so a
// crash mid-run under-delivers rather than duplicating: no user
// receives more than one push per scheduling cycle. Per-user failures
// are contained; only a store failure on the claim itself aborts the run.
func (h *Harvester) Run(ctx context.Context) (Summary, error) {
	now := h.now()

	claimed, err := h.schedule.Claim(now.UnixMilli())
	if err != nil {
		return Summary{}, fmt.Errorf("claim due entries: %w", err)
	}

	var sum Summary
	for _, entry := range claimed {
		sum.Processed++
		h.processUser(ctx, entry, now, &sum)
	}

	if sum.Processed > 0 {
		h.logger.Info("harvest complete",
			"processed", sum.Processed,
			"delivered", sum.Delivered,
			"deregistered", sum.Deregistered,
			"failed", sum.Failed,
		)
		if h.hub != nil {
			h.hub.Broadcast(ws.Message{
				Type: "reminder_run",
				Extra: map[string]any{
					"processed": sum.Processed,
					"delivered": sum.Delivered,
					"failed":    sum.Failed,
				},
			})
		}
	}

	return sum, nil
}

func (h *Harvester) processUser(ctx context.Context, entry model.ScheduleEntry, now time.Time, sum *Summary) {
	userID := entry.UserID

	sub, err := h.subs.Get(userID)
	if err != nil {
		h.logger.Error("load subscription", "user_id", userID, "error", err)
		h.requeue(entry)
		sum.Failed++
		return
	}
	pref, err := h.prefs.Get(userID)
	if err != nil {
		h.logger.Error("load preference", "user_id", userID, "error", err)
		h.requeue(entry)
		sum.Failed++
		return
	}

	// No subscription or reminders turned off: the claim already took
	// the entry out of the schedule, which is exactly the deregistration
	// we want. Nothing to deliver.
	if sub == nil || !pref.Enabled {
		sum.Deregistered++
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, h.deliveryTimeout)
	err = h.pusher.Send(sendCtx, sub, push.ReminderPayload())
	cancel()

	switch {
	case err == nil:
		h.reschedule(userID, now)
		sum.Delivered++
		h.sendFallbackEmail(userID, pref)

	case errors.Is(err, push.ErrExpired):
		if err := h.subs.Delete(userID); err != nil {
			h.logger.Error("delete expired subscription", "user_id", userID, "error", err)
		}
		h.logger.Info("subscription expired, deregistered", "user_id", userID)
		sum.Deregistered++

	default:
		// Transient: put the entry back at its original due time so the
		// next harvest retries. Never abort the rest of the batch.
		h.logger.Warn("push delivery failed", "user_id", userID, "error", err)
		h.requeue(entry)
		sum.Failed++
	}
}

func (h *Harvester) reschedule(userID string, now time.Time) {
	next, err := NextRun(h.reminderTime, now)
	if err != nil {
		// Misconfigured reminder time; fall back to same time tomorrow.
		h.logger.Error("compute next run", "reminder_time", h.reminderTime, "error", err)
		next = now.AddDate(0, 0, 1)
	}
	if err := h.schedule.ScheduleAt(userID, next.UnixMilli()); err != nil {
		// Delivered but not rescheduled: the user misses tomorrow's
		// reminder until they touch their preferences again.
		h.logger.Error("reschedule after delivery", "user_id", userID, "error", err)
	}
}

func (h *Harvester) requeue(entry model.ScheduleEntry) {
	if err := h.schedule.ScheduleAt(entry.UserID, entry.NextRunMillis); err != nil {
		h.logger.Error("requeue schedule entry", "user_id", entry.UserID, "error", err)
	}
}

// sendFallbackEmail is best-effort: the reminder is already delivered
// via push, so failures are logged and swallowed.
func (h *Harvester) sendFallbackEmail(userID string, pref model.NotificationPreference) {
	if h.mailer == nil || !h.mailer.Configured() || pref.EmailFallback == "" {
		return
	}
	if err := h.mailer.SendReminderEmail(pref.EmailFallback); err != nil {
		h.logger.Warn("fallback email failed", "user_id", userID, "error", err)
	}
}
