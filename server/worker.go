package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"worker-render/config"
	"worker-render/worker"
)

// RunWorker starts the standalone poll loop used when render execution is
// decoupled from the request cycle. It requires the durable backend.
func RunWorker(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Store.Backend == "redis" {
		zerolog.Ctx(ctx).Fatal().Msg("worker loop requires the postgres (or memory) store backend")
	}

	d, err := buildDeps(cfg)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("failed to build dependencies")
	}

	workerId := cfg.Worker.Id
	if workerId == "" {
		host, _ := os.Hostname()
		workerId = host + "-" + uuid.NewString()[:8]
	}

	loop := &worker.Loop{
		Store:      d.store,
		Projects:   d.projects,
		Executor:   d.executor,
		Writer:     d.writer,
		WorkerId:   workerId,
		Interval:   cfg.Worker.PollInterval,
		StaleAfter: cfg.Worker.StaleAfter,
	}
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		zerolog.Ctx(ctx).Error().Err(err).Msg("worker loop exited")
	}
}
