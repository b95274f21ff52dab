package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/daymark-app/daymark/internal/email"
	"github.com/daymark-app/daymark/internal/handler"
	"github.com/daymark-app/daymark/internal/middleware"
	"github.com/daymark-app/daymark/internal/push"
	"github.com/daymark-app/daymark/internal/reminder"
	"github.com/daymark-app/daymark/internal/store"
	"github.com/daymark-app/daymark/internal/streak"
	ws "github.com/daymark-app/daymark/internal/websocket"
)

// Config holds everything the server needs beyond the database.
type Config struct {
	CronSecret   string
	ReminderTime string
	Push         push.Config
	EmailClient  *email.Client
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	notificationH *handler.NotificationHandler
	runH          *handler.RunHandler
	streakH       *handler.StreakHandler
	vapidH        *handler.VAPIDHandler
	sessionStore  *store.SessionStore
	rateLimiter   *middleware.RateLimiter
	harvester     *reminder.Harvester
	cronSecret    string
	logger        *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	prefStore := store.NewPreferenceStore(db)
	subStore := store.NewSubscriptionStore(db)
	scheduleStore := store.NewScheduleStore(db)
	streakStore := store.NewStreakStore(db)
	sessionStore := store.NewSessionStore(db)

	reminderTime := cfg.ReminderTime
	if reminderTime == "" {
		reminderTime = reminder.DefaultReminderTime
	}

	var vapidH *handler.VAPIDHandler
	var harvester *reminder.Harvester
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		pushSvc := push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey)
		vapidH = handler.NewVAPIDHandler(pushSvc)

		opts := []reminder.Option{
			reminder.WithReminderTime(reminderTime),
			reminder.WithHub(hub),
		}
		if cfg.EmailClient != nil && cfg.EmailClient.Configured() {
			opts = append(opts, reminder.WithMailer(cfg.EmailClient))
		}
		harvester = reminder.NewHarvester(scheduleStore, prefStore, subStore, pushSvc,
			logger.With("component", "harvester"), opts...)
	}

	streakSvc := streak.NewService(streakStore, hub, logger.With("component", "streak"))

	s := &Server{
		db:            db,
		hub:           hub,
		notificationH: handler.NewNotificationHandler(prefStore, subStore, scheduleStore, reminderTime, logger.With("component", "notification")),
		streakH:       handler.NewStreakHandler(streakSvc, logger.With("component", "streak_handler")),
		vapidH:        vapidH,
		sessionStore:  sessionStore,
		rateLimiter:   middleware.NewRateLimiter(),
		harvester:     harvester,
		cronSecret:    cfg.CronSecret,
		logger:        logger,
	}
	if harvester != nil {
		s.runH = handler.NewRunHandler(harvester, logger.With("component", "run_handler"))
	}
	return s
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Service-to-service routes: shared secret, rate limited to slow
	// brute force of the secret. No session.
	secretChain := func(h http.HandlerFunc) http.Handler {
		limited := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
		return limited(middleware.RequireSecret(s.cronSecret)(h))
	}
	if s.runH != nil {
		outerMux.Handle("POST /notifications/run", secretChain(s.runH.Run))
	}
	outerMux.Handle("POST /internal/entry-created", secretChain(s.streakH.EntryCreated))

	// User routes, behind session auth
	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("POST /user/notification-preferences", s.notificationH.UpdatePreferences)
	protectedMux.HandleFunc("GET /user/notification-preferences", s.notificationH.GetPreferences)
	protectedMux.HandleFunc("GET /user/streak", s.streakH.Current)
	if s.vapidH != nil {
		protectedMux.HandleFunc("GET /user/vapid-key", s.vapidH.Key)
	}
	protectedMux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	authMiddleware := middleware.RequireAuth(s.sessionStore)
	outerMux.Handle("/user/", authMiddleware(protectedMux))
	outerMux.Handle("GET /ws", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
