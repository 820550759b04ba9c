package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"worker-render/constant"
	"worker-render/dto"
	"worker-render/entities"
	"worker-render/repository"
)

var ErrInvalidRequest = errors.New("invalid render request")

// Dispatcher hands a freshly created job to whatever executes it: an AMQP
// publisher, an inline goroutine, or nothing at all when a worker loop polls
// the store instead.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg dto.RenderMessage) error
}

// SpendExemptPolicy decides whether a user renders without a credit debit.
// Injected so the authorization rule lives outside the pipeline.
type SpendExemptPolicy func(userId string) bool

// Pipeline is the render job controller: it creates, queries and deletes job
// records. Execution itself is driven by the dispatcher or the worker loop;
// the pipeline never blocks on a render.
type Pipeline struct {
	store      repository.JobStore
	ledger     repository.CreditLedger
	executor   Executor
	dispatcher Dispatcher
	cost       int64
	exempt     SpendExemptPolicy
}

func NewPipeline(store repository.JobStore, ledger repository.CreditLedger, executor Executor, dispatcher Dispatcher, cost int64, exempt SpendExemptPolicy) *Pipeline {
	return &Pipeline{
		store:      store,
		ledger:     ledger,
		executor:   executor,
		dispatcher: dispatcher,
		cost:       cost,
		exempt:     exempt,
	}
}

// CreateRenderJob validates the request, charges the render (idempotent per
// renderId), persists the pending record and dispatches it. It returns as
// soon as the record is durable; completion is observed by polling.
func (p *Pipeline) CreateRenderJob(ctx context.Context, userId string, req dto.CreateRenderRequest, opts dto.RenderOptions) (*entities.RenderJob, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: missing userId", ErrInvalidRequest)
	}
	if req.RenderId == "" {
		return nil, fmt.Errorf("%w: missing renderId", ErrInvalidRequest)
	}
	if req.ProjectId == "" {
		return nil, fmt.Errorf("%w: missing projectId", ErrInvalidRequest)
	}
	if !opts.Validate() {
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidRequest, opts.Format)
	}
	opts = opts.Normalized()

	if _, err := p.store.GetJob(ctx, userId, req.RenderId); err == nil {
		return nil, fmt.Errorf("%w: render %s already exists", ErrInvalidRequest, req.RenderId)
	} else if !errors.Is(err, repository.ErrJobNotFound) {
		return nil, err
	}

	if p.cost > 0 && (p.exempt == nil || !p.exempt(userId)) {
		balance, err := p.ledger.Spend(ctx, userId, p.cost, constant.SpendReasonRender, req.RenderId)
		if err != nil {
			return nil, err
		}
		zerolog.Ctx(ctx).Info().
			Str("render_id", req.RenderId).
			Int64("balance", balance).
			Msg("render charged")
	}

	job := entities.NewRenderJob(userId, req.RenderId, req.ProjectId, req.ConfigId)
	if err := p.store.UpsertJob(ctx, userId, job); err != nil {
		return nil, err
	}

	if p.dispatcher != nil {
		msg := dto.RenderMessage{UserId: userId, RenderId: job.RenderId, Options: opts}
		if err := p.dispatcher.Dispatch(ctx, msg); err != nil {
			// the record stays pending; the worker loop will pick it up
			zerolog.Ctx(ctx).Error().Err(err).Str("render_id", job.RenderId).Msg("dispatch failed")
		}
	}
	return job, nil
}

func (p *Pipeline) GetRenderJob(ctx context.Context, userId, renderId string) (*entities.RenderJob, error) {
	return p.store.GetJob(ctx, userId, renderId)
}

// ListRenderJobs returns the user's jobs newest first, optionally filtered by
// status, truncated to limit (default 20). Ordering is this layer's contract;
// the store returns jobs in any order.
func (p *Pipeline) ListRenderJobs(ctx context.Context, userId string, statusFilter constant.RenderStatus, limit int) ([]*entities.RenderJob, error) {
	jobs, err := p.store.LoadJobs(ctx, userId)
	if err != nil {
		return nil, err
	}
	if statusFilter != "" {
		filtered := jobs[:0]
		for _, job := range jobs {
			if job.Status == statusFilter {
				filtered = append(filtered, job)
			}
		}
		jobs = filtered
	}
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].CreatedAt != jobs[k].CreatedAt {
			return jobs[i].CreatedAt > jobs[k].CreatedAt
		}
		return jobs[i].RenderId > jobs[k].RenderId
	})
	if limit <= 0 {
		limit = constant.DefaultListLimit
	}
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// DeleteRenderJob removes the record and the executor's temporary artifacts.
// It reports false, not an error, when the job never existed.
func (p *Pipeline) DeleteRenderJob(ctx context.Context, userId, renderId string) (bool, error) {
	deleted, err := p.store.DeleteJob(ctx, userId, renderId)
	if err != nil {
		return false, err
	}
	if deleted && p.executor != nil {
		if err := p.executor.Cleanup(renderId); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("render_id", renderId).Msg("artifact cleanup failed")
		}
	}
	return deleted, nil
}
