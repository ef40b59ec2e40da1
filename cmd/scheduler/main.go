// Command scheduler enqueues the recurring pipeline jobs (sweep, dispatch,
// retry, inbox check). The API process runs the worker that executes them,
// so exactly one scheduler instance should run per deployment.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"crescoflow/internal/scheduler"
	"crescoflow/platform/config"
	"crescoflow/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	if cfg.GetRedisURL() == "" {
		log.Error("REDIS_URL is required for the scheduler")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}

	if err := periodic.Run(ctx); err != nil {
		log.Error("periodic scheduler stopped", "error", err)
		os.Exit(1)
	}
	log.Info("scheduler stopped")
}
