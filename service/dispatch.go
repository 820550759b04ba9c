package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"worker-render/dto"
	"worker-render/repository"
)

// InlineDispatcher executes the render in-process, off the request goroutine.
// Used in single-instance deployments without a broker or worker loop.
type InlineDispatcher struct {
	Store    repository.JobStore
	Executor Executor
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, msg dto.RenderMessage) error {
	job, err := d.Store.GetJob(ctx, msg.UserId, msg.RenderId)
	if err != nil {
		return err
	}
	// the render outlives the request; detach from its cancellation
	bg := context.WithoutCancel(ctx)
	go func() {
		if err := d.Executor.Execute(bg, msg.UserId, job, msg.Options); err != nil {
			zerolog.Ctx(bg).Error().Err(err).Str("render_id", msg.RenderId).Msg("inline render failed")
		}
	}()
	return nil
}

// Publisher is the broker surface a dispatcher needs.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// QueueDispatcher publishes the render message for a consumer to pick up.
type QueueDispatcher struct {
	Publisher Publisher
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, msg dto.RenderMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return d.Publisher.Publish(ctx, body)
}
