package reminder

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/daymark-app/daymark/internal/database"
	"github.com/daymark-app/daymark/internal/model"
	"github.com/daymark-app/daymark/internal/push"
	"github.com/daymark-app/daymark/internal/store"
)

type fakePusher struct {
	errs map[string]error
	sent []string
}

func (f *fakePusher) Send(ctx context.Context, sub *model.PushSubscription, payload push.Payload) error {
	f.sent = append(f.sent, sub.UserID)
	return f.errs[sub.UserID]
}

type fakeMailer struct {
	sentTo []string
	err    error
}

func (f *fakeMailer) Configured() bool { return true }
func (f *fakeMailer) SendReminderEmail(to string) error {
	f.sentTo = append(f.sentTo, to)
	return f.err
}

type harvestEnv struct {
	schedule *store.ScheduleStore
	prefs    *store.PreferenceStore
	subs     *store.SubscriptionStore
	pusher   *fakePusher
}

func setupHarvest(t *testing.T, now time.Time, opts ...Option) (*Harvester, *harvestEnv) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &harvestEnv{
		schedule: store.NewScheduleStore(db),
		prefs:    store.NewPreferenceStore(db),
		subs:     store.NewSubscriptionStore(db),
		pusher:   &fakePusher{errs: map[string]error{}},
	}

	opts = append([]Option{WithNow(func() time.Time { return now })}, opts...)
	h := NewHarvester(env.schedule, env.prefs, env.subs, env.pusher, slog.Default(), opts...)
	return h, env
}

// enrol gives a user an enabled preference, a subscription, and a
// schedule entry at the given time.
func (e *harvestEnv) enrol(t *testing.T, userID string, due time.Time) {
	t.Helper()
	if err := e.prefs.Set(userID, true, ""); err != nil {
		t.Fatalf("set preference: %v", err)
	}
	if err := e.subs.Set(userID, "https://push.example.com/"+userID, "p256dh-"+userID, "auth-"+userID); err != nil {
		t.Fatalf("set subscription: %v", err)
	}
	if err := e.schedule.ScheduleAt(userID, due.UnixMilli()); err != nil {
		t.Fatalf("schedule: %v", err)
	}
}

func dueUsers(t *testing.T, s *store.ScheduleStore, nowMillis int64) map[string]int64 {
	t.Helper()
	entries, err := s.Due(nowMillis)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	m := make(map[string]int64, len(entries))
	for _, e := range entries {
		m[e.UserID] = e.NextRunMillis
	}
	return m
}

func TestRunEmptySchedule(t *testing.T) {
	now := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	h, _ := setupHarvest(t, now)

	sum, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Processed != 0 {
		t.Errorf("processed = %d, want 0", sum.Processed)
	}
}

func TestRunDeliversAndReschedules(t *testing.T) {
	now := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	h, env := setupHarvest(t, now)
	env.enrol(t, "u1", now)

	sum, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Processed != 1 || sum.Delivered != 1 {
		t.Errorf("summary = %+v, want 1 processed, 1 delivered", sum)
	}
	if len(env.pusher.sent) != 1 || env.pusher.sent[0] != "u1" {
		t.Errorf("sent = %v, want [u1]", env.pusher.sent)
	}

	// Rescheduled to tomorrow 20:00, so nothing is due now.
	if due := dueUsers(t, env.schedule, now.UnixMilli()); len(due) != 0 {
		t.Errorf("still due after delivery: %v", due)
	}
	tomorrow := time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC)
	due := dueUsers(t, env.schedule, tomorrow.UnixMilli())
	if got, ok := due["u1"]; !ok || got != tomorrow.UnixMilli() {
		t.Errorf("next run = %v, want %d", due, tomorrow.UnixMilli())
	}
}

func TestRunBatchIsolation(t *testing.T) {
	now := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	h, env := setupHarvest(t, now)
	env.enrol(t, "a", now.Add(-2*time.Minute))
	env.enrol(t, "b", now.Add(-time.Minute))
	env.enrol(t, "c", now)
	env.pusher.errs["b"] = errors.New("push service unavailable")

	sum, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("run must not fail on a per-user delivery error: %v", err)
	}
	if sum.Processed != 3 {
		t.Errorf("processed = %d, want 3", sum.Processed)
	}
	if sum.Delivered != 2 {
		t.Errorf("delivered = %d, want 2", sum.Delivered)
	}
	if sum.Failed != 1 {
		t.Errorf("failed = %d, want 1", sum.Failed)
	}
	if len(env.pusher.sent) != 3 {
		t.Errorf("sent = %v, want all three attempted", env.pusher.sent)
	}

	// The failed user's entry is back at its original due time so the
	// next harvest retries; the delivered users moved to tomorrow.
	due := dueUsers(t, env.schedule, now.UnixMilli())
	if len(due) != 1 {
		t.Fatalf("due now = %v, want only the failed user", due)
	}
	if got := due["b"]; got != now.Add(-time.Minute).UnixMilli() {
		t.Errorf("b requeued at %d, want original due time %d", got, now.Add(-time.Minute).UnixMilli())
	}
}

func TestRunExpiredDeregisters(t *testing.T) {
	now := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	h, env := setupHarvest(t, now)
	env.enrol(t, "u1", now)
	env.pusher.errs["u1"] = push.ErrExpired

	sum, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Deregistered != 1 {
		t.Errorf("deregistered = %d, want 1", sum.Deregistered)
	}

	sub, err := env.subs.Get("u1")
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub != nil {
		t.Error("expired subscription must be deleted")
	}
	if due := dueUsers(t, env.schedule, now.AddDate(0, 0, 7).UnixMilli()); len(due) != 0 {
		t.Errorf("schedule = %v, want empty after expiry", due)
	}
}

func TestRunMissingSubscriptionDeregisters(t *testing.T) {
	now := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	h, env := setupHarvest(t, now)
	env.prefs.Set("u1", true, "")
	env.schedule.ScheduleAt("u1", now.UnixMilli())

	sum, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Deregistered != 1 {
		t.Errorf("deregistered = %d, want 1", sum.Deregistered)
	}
	if len(env.pusher.sent) != 0 {
		t.Errorf("sent = %v, want no delivery without a subscription", env.pusher.sent)
	}
	if due := dueUsers(t, env.schedule, now.AddDate(0, 0, 7).UnixMilli()); len(due) != 0 {
		t.Errorf("schedule = %v, want empty", due)
	}
}

func TestRunDisabledPreferenceDeregisters(t *testing.T) {
	now := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	h, env := setupHarvest(t, now)
	env.enrol(t, "u1", now)
	env.prefs.Set("u1", false, "")

	sum, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Deregistered != 1 {
		t.Errorf("deregistered = %d, want 1", sum.Deregistered)
	}
	if len(env.pusher.sent) != 0 {
		t.Errorf("sent = %v, want no delivery when disabled", env.pusher.sent)
	}
	// The stale subscription is kept; only the schedule entry goes.
	sub, _ := env.subs.Get("u1")
	if sub == nil {
		t.Error("disabling must not delete the subscription")
	}
}

func TestRunAtMostOncePerCycle(t *testing.T) {
	now := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	h, env := setupHarvest(t, now)
	env.enrol(t, "u1", now)

	if _, err := h.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	sum, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sum.Processed != 0 {
		t.Errorf("second run processed = %d, want 0", sum.Processed)
	}
	if len(env.pusher.sent) != 1 {
		t.Errorf("sent = %v, want exactly one push per cycle", env.pusher.sent)
	}
}

func TestRunFallbackEmail(t *testing.T) {
	now := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	mailer := &fakeMailer{}
	h, env := setupHarvest(t, now, WithMailer(mailer))
	env.enrol(t, "u1", now)
	env.prefs.Set("u1", true, "u1@example.com")

	if _, err := h.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(mailer.sentTo) != 1 || mailer.sentTo[0] != "u1@example.com" {
		t.Errorf("fallback emails = %v, want [u1@example.com]", mailer.sentTo)
	}
}

func TestRunFallbackEmailFailureIsSwallowed(t *testing.T) {
	now := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	mailer := &fakeMailer{err: errors.New("smtp down")}
	h, env := setupHarvest(t, now, WithMailer(mailer))
	env.enrol(t, "u1", now)
	env.prefs.Set("u1", true, "u1@example.com")

	sum, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// The push went out; the reminder counts as delivered.
	if sum.Delivered != 1 || sum.Failed != 0 {
		t.Errorf("summary = %+v, want delivered despite email failure", sum)
	}
}

// Full scenario: enable at 10:00, nothing due at 19:00, delivered and
// rescheduled at 20:00.
func TestRunEndToEndScenario(t *testing.T) {
	enableAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	h, env := setupHarvest(t, enableAt)

	firstRun, err := NextRun("20:00", enableAt)
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	env.enrol(t, "A", firstRun)
	if want := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC); !firstRun.Equal(want) {
		t.Fatalf("first run = %v, want %v", firstRun, want)
	}

	nineteen := time.Date(2024, 1, 1, 19, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return nineteen }
	sum, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("run at 19:00: %v", err)
	}
	if sum.Processed != 0 {
		t.Errorf("processed at 19:00 = %d, want 0", sum.Processed)
	}

	twenty := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return twenty }
	sum, err = h.Run(context.Background())
	if err != nil {
		t.Fatalf("run at 20:00: %v", err)
	}
	if sum.Processed != 1 || sum.Delivered != 1 {
		t.Errorf("summary at 20:00 = %+v, want 1 delivered", sum)
	}

	nextDay := time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC)
	due := dueUsers(t, env.schedule, nextDay.UnixMilli())
	if got, ok := due["A"]; !ok || got != nextDay.UnixMilli() {
		t.Errorf("rescheduled = %v, want A at %d", due, nextDay.UnixMilli())
	}
}
