package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daymark-app/daymark/internal/database"
	"github.com/daymark-app/daymark/internal/email"
	"github.com/daymark-app/daymark/internal/logging"
	"github.com/daymark-app/daymark/internal/push"
	"github.com/daymark-app/daymark/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("DAYMARK_LOG_LEVEL"), os.Getenv("DAYMARK_LOG_FORMAT"))

	port := os.Getenv("DAYMARK_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("DAYMARK_DB_PATH")
	if dbPath == "" {
		dbPath = "daymark.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cfg := server.Config{
		CronSecret:   os.Getenv("DAYMARK_CRON_SECRET"),
		ReminderTime: os.Getenv("DAYMARK_REMINDER_TIME"),
		Push: push.Config{
			VAPIDPublicKey:  os.Getenv("DAYMARK_VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("DAYMARK_VAPID_PRIVATE_KEY"),
		},
		EmailClient: email.NewClient(os.Getenv("DAYMARK_POSTMARK_TOKEN"), os.Getenv("DAYMARK_FROM_EMAIL")),
	}
	if cfg.CronSecret == "" {
		logger.Warn("DAYMARK_CRON_SECRET not set; cron and internal endpoints will reject all requests")
	}
	if cfg.Push.VAPIDPublicKey == "" || cfg.Push.VAPIDPrivateKey == "" {
		logger.Warn("VAPID keys not set; push delivery disabled")
	}

	srv := server.New(db, cfg, logger)

	// Housekeeping: expired sessions and stale rate-limit windows.
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("session cleanup", "error", err)
				} else if n > 0 {
					logger.Info("session cleanup", "deleted", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("daymark reminder service listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancelCleanup()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
