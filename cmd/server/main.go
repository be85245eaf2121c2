package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/eventradar/radar/internal/app"
	"github.com/eventradar/radar/internal/config"
	"github.com/eventradar/radar/internal/logging"
	"github.com/eventradar/radar/internal/scheduler"
	"github.com/eventradar/radar/internal/server"
)

func main() {
	// Local development convenience; real deployments set the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting event radar", "store", cfg.Store.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	handler, err := a.Handler()
	if err != nil {
		logger.Error("failed to build handler", "error", err)
		os.Exit(1)
	}

	srv := server.New(cfg.Server, logger, handler)
	if err := srv.Listen(); err != nil {
		logger.Error("failed to bind", "error", err)
		os.Exit(1)
	}

	var sched *scheduler.Scheduler
	if cfg.Schedule.Enabled {
		sched = scheduler.New(logger)
		for _, job := range a.Jobs() {
			if err := sched.Add(job); err != nil {
				logger.Error("failed to schedule job", "job", job.Name, "error", err)
				os.Exit(1)
			}
		}
		sched.Start()
	} else {
		logger.Info("scheduler disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}
	if sched != nil {
		sched.Stop()
	}
	logger.Info("server stopped")
}
