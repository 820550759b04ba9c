package handler

import (
	"context"
	"encoding/json"
	"errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"worker-render/dto"
	"worker-render/repository"
	"worker-render/service"
)

type ServiceDependencies struct {
	Executor service.Executor
	Store    repository.JobStore
}

// RenderHandler consumes a dispatch message and runs the render. A message
// for a job that is already terminal (or deleted) is acked and dropped.
func RenderHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var m dto.RenderMessage
	if err := json.Unmarshal(msg.Body, &m); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal render message")
		return err
	}

	job, err := deps.Store.GetJob(ctx, m.UserId, m.RenderId)
	if errors.Is(err, repository.ErrJobNotFound) {
		zerolog.Ctx(ctx).Warn().Str("render_id", m.RenderId).Msg("render message for unknown job")
		return nil
	}
	if err != nil {
		return err
	}
	if job.Terminal() {
		return nil
	}

	return deps.Executor.Execute(ctx, m.UserId, job, m.Options.Normalized())
}
