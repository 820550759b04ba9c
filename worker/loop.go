package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"worker-render/constant"
	"worker-render/dto"
	"worker-render/repository"
	"worker-render/service"
)

// Loop drives pending jobs to completion outside the request cycle. It is
// strictly sequential: one job per iteration, blocking on the executor for
// the whole render. Crash recovery is just re-reading pending jobs from
// durable storage on the next start; a process manager supervises restarts.
type Loop struct {
	Store      repository.JobStore
	Projects   repository.ProjectStore
	Executor   service.Executor
	Writer     *service.JobWriter
	WorkerId   string
	Interval   time.Duration
	StaleAfter time.Duration
}

func (l *Loop) Run(ctx context.Context) error {
	interval := l.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	zerolog.Ctx(ctx).Info().
		Str("worker_id", l.WorkerId).
		Dur("interval", interval).
		Msg("render worker loop started")

	for {
		l.tick(ctx)

		select {
		case <-ctx.Done():
			zerolog.Ctx(ctx).Info().Msg("render worker loop stopping")
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// tick handles at most one job. A failed job never stops the loop.
func (l *Loop) tick(ctx context.Context) {
	if l.StaleAfter > 0 {
		if swept, err := l.Store.FailStale(ctx, l.StaleAfter); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("stale job sweep failed")
		} else if swept > 0 {
			zerolog.Ctx(ctx).Warn().Int("count", swept).Msg("force-failed stale processing jobs")
		}
	}

	job, err := l.Store.NextPending(ctx)
	if errors.Is(err, repository.ErrJobNotFound) {
		return
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to poll pending jobs")
		return
	}

	log := zerolog.Ctx(ctx).With().Str("render_id", job.RenderId).Str("user_id", job.UserId).Logger()

	ok, err := l.Projects.Exists(ctx, job.UserId, job.ProjectId)
	if err != nil {
		log.Error().Err(err).Msg("project precondition check failed")
		return
	}
	if !ok {
		reason := fmt.Sprintf("project %s no longer exists", job.ProjectId)
		if err := l.Writer.Fail(ctx, job.UserId, job.RenderId, reason, ""); err != nil {
			log.Error().Err(err).Msg("failed to record precondition failure")
		} else {
			log.Warn().Msg("job failed precondition, executor not invoked")
		}
		return
	}

	claimed, err := l.Store.ClaimJob(ctx, job.RenderId, l.WorkerId)
	if err != nil {
		log.Error().Err(err).Msg("claim failed")
		return
	}
	if !claimed {
		log.Info().Msg("job claimed elsewhere, skipping")
		return
	}
	job.Status = constant.RenderStatusProcessing

	start := time.Now()
	log.Info().Msg("processing render job")
	if err := l.Executor.Execute(ctx, job.UserId, job, dto.DefaultRenderOptions()); err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("render job failed")
		return
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("render job finished")
}
