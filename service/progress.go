package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"worker-render/entities"
	"worker-render/repository"
)

// JobWriter applies executor-reported transitions to the stored job record.
// Every write goes through the entity's state machine, so updates arriving
// after a terminal status are dropped instead of persisted.
type JobWriter struct {
	store repository.JobStore
}

func NewJobWriter(store repository.JobStore) *JobWriter {
	return &JobWriter{store: store}
}

func (w *JobWriter) BeginProcessing(ctx context.Context, userId, renderId string) error {
	return w.advance(ctx, userId, renderId, func(job *entities.RenderJob) bool {
		return job.BeginProcessing()
	})
}

func (w *JobWriter) SetProgress(ctx context.Context, userId, renderId string, progress int) error {
	return w.advance(ctx, userId, renderId, func(job *entities.RenderJob) bool {
		return job.SetProgress(progress)
	})
}

func (w *JobWriter) Complete(ctx context.Context, userId, renderId, outputUrl, logTail string) error {
	return w.advance(ctx, userId, renderId, func(job *entities.RenderJob) bool {
		if !job.Complete(outputUrl) {
			return false
		}
		job.AppendLogTail(logTail)
		return true
	})
}

func (w *JobWriter) Fail(ctx context.Context, userId, renderId, reason, logTail string) error {
	return w.advance(ctx, userId, renderId, func(job *entities.RenderJob) bool {
		if !job.Fail(reason) {
			return false
		}
		job.AppendLogTail(logTail)
		return true
	})
}

func (w *JobWriter) advance(ctx context.Context, userId, renderId string, apply func(*entities.RenderJob) bool) error {
	job, err := w.store.GetJob(ctx, userId, renderId)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			zerolog.Ctx(ctx).Warn().Str("render_id", renderId).Msg("dropping update for unknown job")
			return nil
		}
		return err
	}
	if !apply(job) {
		// stale or out-of-order update, no-op
		return nil
	}
	return w.store.UpsertJob(ctx, userId, job)
}
