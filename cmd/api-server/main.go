package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/caredesk/clinic-booking/internal/api"
	"github.com/caredesk/clinic-booking/internal/appointment"
	"github.com/caredesk/clinic-booking/internal/auth"
	"github.com/caredesk/clinic-booking/internal/catalog"
	"github.com/caredesk/clinic-booking/internal/config"
	"github.com/caredesk/clinic-booking/internal/db"
	"github.com/caredesk/clinic-booking/internal/metrics"
	"github.com/caredesk/clinic-booking/internal/news"
	"github.com/caredesk/clinic-booking/internal/push"
	redisclient "github.com/caredesk/clinic-booking/internal/redis"
	"github.com/caredesk/clinic-booking/internal/review"
	"github.com/caredesk/clinic-booking/internal/schedule"
	"github.com/caredesk/clinic-booking/pkg/logging"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("error", "api-server")
		bootLog.Fatal().Err(err).Msg("config load failed")
	}
	log := logging.New(cfg.LogLevel, "api-server")

	if err := cfg.RequireJWT(); err != nil {
		log.Fatal().Err(err).Msg("config invalid")
	}

	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("starting")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("redis close failed")
		}
	}()
	log.Info().Msg("connected to redis")

	m := metrics.New(prometheus.DefaultRegisterer)

	// repositories
	userRepo := auth.NewPgRepository(pgPool)
	catalogRepo := catalog.NewPgRepository(pgPool)
	scheduleRepo := schedule.NewPgRepository(pgPool)
	appointmentRepo := appointment.NewPgRepository(pgPool)
	reviewRepo := review.NewPgRepository(pgPool)
	newsRepo := news.NewPgRepository(pgPool)

	// push channel: redis-backed bus + per-instance hub
	bus := push.NewBus(rdb, log)
	defer bus.Close()
	advisory := redisclient.NewAdvisoryLocker(rdb, cfg.LockTTL)
	hub := push.NewHub(advisory, bus, scheduleRepo, m, log)

	// services
	authSvc := auth.NewService(
		userRepo,
		auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL),
		auth.NewOTPStore(rdb, cfg.OTPTTL),
		auth.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPEmail, cfg.SMTPPassword),
		log,
	)
	catalogSvc := catalog.NewService(catalogRepo)
	scheduleSvc := schedule.NewService(scheduleRepo)
	bookingLocker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	appointmentSvc := appointment.NewService(appointmentRepo, scheduleRepo, bookingLocker, bus, cfg, log)
	reviewSvc := review.NewService(reviewRepo, appointmentRepo, catalogRepo, log)
	newsSvc := news.NewService(newsRepo)

	router := api.NewRouter(api.RouterConfig{
		Auth:         authSvc,
		Catalog:      catalogSvc,
		Schedules:    scheduleSvc,
		Appointments: appointmentSvc,
		Reviews:      reviewSvc,
		News:         newsSvc,
		Push:         push.NewHandler(hub, authSvc, m, log),
		PgPool:       pgPool,
		Redis:        rdb,
		Metrics:      m,
		Log:          log,
		Env:          cfg.Env,
		Version:      version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("stopped")
}
