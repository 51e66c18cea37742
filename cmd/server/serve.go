package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/movieflix/internal/config"
	"github.com/iliyamo/movieflix/internal/database"
	"github.com/iliyamo/movieflix/internal/queue"
	"github.com/iliyamo/movieflix/internal/repository"
	"github.com/iliyamo/movieflix/internal/router" // Internal router setup
	"github.com/iliyamo/movieflix/internal/service"
	"github.com/iliyamo/movieflix/internal/session"
)

const shutdownTimeout = 10 * time.Second

// serve runs the API until SIGINT or SIGTERM, then drains in-flight
// requests for up to shutdownTimeout.
func serve(ctx context.Context, env env) error {
	cfg, log := env.cfg, env.log

	db, err := database.Open(cfg, log)
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		return err
	}

	rdb := config.NewRedisClient(cfg.Redis) // nil when disabled or unreachable
	if rdb != nil {
		defer rdb.Close()
	} else if cfg.Redis.Enabled {
		log.Warnw("redis unreachable, using in-process rate limits and session store", "addr", cfg.Redis.Addr)
	}

	events, err := service.NewPublisher(cfg.Events, log)
	if err != nil {
		return err
	}
	defer events.Close()

	sweeper, err := service.NewTokenSweeper(repository.NewTokenRepo(db), cfg.TokenSweepSpec, log)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	e := router.New(router.Deps{
		Cfg:      cfg,
		DB:       db,
		Redis:    rdb,
		Sessions: session.NewStore(rdb),
		Events:   events,
		Log:      log,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port // Address string with port
	errc := make(chan error, 1)
	go func() {
		log.Infow("listening", "addr", addr, "env", cfg.Env, "db", cfg.DBDriver, "events", cfg.Events.Backend)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Infow("shutting down", "timeout", shutdownTimeout)
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}

// migrate applies the schema and exits.
func migrate(_ context.Context, env env) error {
	db, err := database.Open(env.cfg, env.log)
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		return err
	}
	env.log.Infow("schema up to date", "driver", env.cfg.DBDriver)
	return nil
}

// audit runs the RabbitMQ audit consumer until interrupted.
func audit(ctx context.Context, env env) error {
	cfg := env.cfg.Events
	if cfg.RabbitMQURL == "" {
		return errors.New("audit: RABBITMQ_URL is not set")
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := queue.NewAuditConsumer(cfg.RabbitMQURL, cfg.Queue, cfg.AuditLogPath, env.log)
	env.log.Infow("audit consumer started", "queue", c.Queue, "log", c.LogPath)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
