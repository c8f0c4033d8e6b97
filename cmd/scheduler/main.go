package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"finpanel/internal/actor"
	"finpanel/internal/app"
	"finpanel/internal/config"
	"finpanel/internal/handlers"
	"finpanel/internal/logger"
	"finpanel/internal/scheduler"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Scheduler error: %v", err)
	}
}

func run() error {
	log := logger.Named("scheduler")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	at, err := scheduler.ParseClock(cfg.Setting(config.KeyScheduledRunAt))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var lock scheduler.Lock = scheduler.NewMemoryLock()
	if cfg.RedisAddr != "" {
		redisLock, err := scheduler.ConnectRedisLock(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer redisLock.Close()
		lock = redisLock
	}

	job := func(ctx context.Context, now time.Time) error {
		ctx = actor.WithID(ctx, actor.System)
		report, err := a.Scheduler.RunDue(ctx, now)
		if err != nil {
			return err
		}
		if report.ShouldNotify {
			handlers.NotifyScheduleReport(ctx, a.Notifier, report)
		}
		return nil
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Scheduler running daily at %02d:%02d", at.Hour, at.Minute)
		return scheduler.Daily(gctx, at, scheduler.Exclusive(lock, cfg.SchedulerLockTTL, job))
	})
	g.Go(func() error {
		log.Infof("Metrics listening on port %s", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Scheduler stopped")
	return nil
}
