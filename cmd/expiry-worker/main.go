package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/caredesk/clinic-booking/internal/appointment"
	"github.com/caredesk/clinic-booking/internal/config"
	"github.com/caredesk/clinic-booking/internal/db"
	"github.com/caredesk/clinic-booking/internal/push"
	redisclient "github.com/caredesk/clinic-booking/internal/redis"
	"github.com/caredesk/clinic-booking/internal/schedule"
	"github.com/caredesk/clinic-booking/pkg/logging"
)

// The expiry worker sweeps pending appointments whose hold lapsed, frees
// their seats and tells the rooms. It runs beside the API instances; any
// number of workers can run, the status compare-and-set keeps them from
// double-expiring.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("error", "expiry-worker")
		bootLog.Fatal().Err(err).Msg("config load failed")
	}
	log := logging.New(cfg.LogLevel, "expiry-worker")

	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("starting")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pgPool.Close()

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("redis close failed")
		}
	}()

	repo := appointment.NewPgRepository(pgPool)
	scheduleRepo := schedule.NewPgRepository(pgPool)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	advisory := redisclient.NewAdvisoryLocker(rdb, cfg.LockTTL)
	bus := push.NewBus(rdb, log)
	defer bus.Close()
	svc := appointment.NewService(repo, scheduleRepo, locker, bus, cfg, log)

	runOnce(rootCtx, svc, advisory, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, advisory, log)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, advisory *redisclient.AdvisoryLocker, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := svc.ExpirePending(runCtx); err != nil {
		log.Error().Err(err).Msg("expiry run failed")
		return
	}

	reaped, err := advisory.ReapOrphans(runCtx)
	if err != nil {
		log.Error().Err(err).Msg("advisory lock sweep failed")
		return
	}
	if reaped > 0 {
		log.Warn().Int("reaped", reaped).Msg("dropped advisory locks without expiry")
	}

	log.Info().Dur("took", time.Since(start)).Msg("expiry run complete")
}
