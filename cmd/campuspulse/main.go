package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campuspulse/campuspulse/db"
	"github.com/campuspulse/campuspulse/internal/auth"
	"github.com/campuspulse/campuspulse/internal/config"
	"github.com/campuspulse/campuspulse/internal/handlers"
	"github.com/campuspulse/campuspulse/internal/metrics"
	"github.com/campuspulse/campuspulse/internal/middleware"
	"github.com/campuspulse/campuspulse/internal/realtime"
	"github.com/campuspulse/campuspulse/internal/router"
	"github.com/campuspulse/campuspulse/internal/scheduler"
	"github.com/campuspulse/campuspulse/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/juju/clock"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("campuspulse")

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		logger.Criticalf("%v", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := loggo.ConfigureLoggers("<root>=" + cfg.LogLevel); err != nil {
		return err
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	if err := auth.InitJWTSecret(cfg.JWTSecret); err != nil {
		return err
	}

	if err := db.ConnectDatabase(cfg.DBDriver, cfg.DatabaseURL); err != nil {
		return err
	}
	if err := db.MigrateDatabase(db.DB); err != nil {
		return err
	}
	logger.Infof("connected to %s database", cfg.DBDriver)

	registry, err := metrics.NewRegistry()
	if err != nil {
		return err
	}
	m := metrics.New(registry)
	hub := realtime.NewHub(m)

	svc, err := services.New(services.Config{DB: db.DB, Publisher: hub, Clock: clock.WallClock, Metrics: m})
	if err != nil {
		return err
	}

	notifier := services.NewNotifier(cfg.DiscordWebhookURL, cfg.SlackWebhookURL, clock.WallClock)
	if notifier.Enabled() {
		defer notifier.Attach(hub)()
		logger.Infof("webhook notifications enabled")
	}

	sched := scheduler.NewScheduler(scheduler.Config{
		DB:       db.DB,
		Clock:    clock.WallClock,
		Metrics:  m,
		Schedule: cfg.StatusSyncSchedule,
		Location: cfg.EventLocation,
	})
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, clock.WallClock)
	defer limiter.Stop()

	r, err := router.NewRouter(router.Config{
		DB: db.DB,
		Handler: handlers.New(handlers.Config{
			DB:             db.DB,
			Service:        svc,
			Hub:            hub,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		Gatherer:       registry,
		AuthLimiter:    limiter,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("listening on :%s", cfg.Port)
		errc <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case sig := <-stop:
		logger.Infof("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(ctx)
}
