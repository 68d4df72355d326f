package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/pilltime/internal/application"
	"github.com/example/pilltime/internal/config"
	httptransport "github.com/example/pilltime/internal/http"
	"github.com/example/pilltime/internal/occurrence"
	"github.com/example/pilltime/internal/persistence/sqlite"
	"github.com/example/pilltime/internal/push"
	"github.com/example/pilltime/internal/reminder"
	"github.com/example/pilltime/internal/trigger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close database", "error", cerr)
		}
	}()

	if err := pool.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now
	location := cfg.Location(time.Local)

	medicationRepo := sqlite.NewMedicationRepository(pool)
	logRepo := sqlite.NewLogRepository(pool)
	subscriptionRepo := sqlite.NewSubscriptionRepository(pool)
	settingRepo := sqlite.NewSettingRepository(pool)

	if !cfg.VAPID.Configured() {
		logger.Warn("VAPID keys not set; push notifications disabled")
	}
	sender := push.NewSender(subscriptionRepo, cfg.VAPID, cfg.PushTimeout, logger)

	engine := occurrence.NewEngine(location)
	generator := reminder.NewGenerator(medicationRepo, logRepo, engine, idGenerator, now, logger)
	sweeper := reminder.NewSweeper(logRepo, logger)
	notifier := reminder.NewNotifier(logRepo, sender, now, logger)

	triggers := trigger.NewEngine(generator, sweeper, notifier, subscriptionRepo, location, now, logger)
	triggerCtx, stopTriggers := context.WithCancel(context.Background())
	triggerDone := make(chan struct{})
	go func() {
		defer close(triggerDone)
		triggers.Run(triggerCtx)
	}()

	medicationService := application.NewMedicationService(medicationRepo, generator, idGenerator, now, logger)
	logService := application.NewLogService(logRepo, medicationRepo, location, idGenerator, now, logger)
	subscriptionService := application.NewSubscriptionService(subscriptionRepo, sender, now, logger)
	settingService := application.NewSettingService(settingRepo, now, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Medications: httptransport.NewMedicationHandler(medicationService, logger),
		Logs:        httptransport.NewLogHandler(logService, logger),
		Push:        httptransport.NewPushHandler(subscriptionService, logger),
		Settings:    httptransport.NewSettingHandler(settingService, logger),
		Middleware:  []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("pilltime API listening", "addr", server.Addr, "timezone", location.String())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}

	stopTriggers()
	<-triggerDone
}
