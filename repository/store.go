package repository

import (
	"context"
	"errors"
	"time"
	"worker-render/entities"
)

var (
	// ErrStoreUnavailable wraps backend connectivity failures. Callers must
	// not treat it as "no jobs".
	ErrStoreUnavailable = errors.New("job store unavailable")

	ErrJobNotFound = errors.New("render job not found")

	// ErrUnsupported is returned by backends that cannot serve worker-loop
	// operations (the cache-style store has no cross-user pending scan).
	ErrUnsupported = errors.New("operation not supported by this backend")

	ErrInsufficientBalance = errors.New("insufficient balance")
)

// JobStore persists render job records per user. Ordering and truncation of
// listings are the pipeline's responsibility, not the store's.
type JobStore interface {
	// LoadJobs returns every job for a user, empty when none exist.
	LoadJobs(ctx context.Context, userId string) ([]*entities.RenderJob, error)
	GetJob(ctx context.Context, userId, renderId string) (*entities.RenderJob, error)
	// SaveJobs replaces the user's whole job list.
	SaveJobs(ctx context.Context, userId string, jobs []*entities.RenderJob) error
	// UpsertJob writes one record; calling twice with identical content is a
	// no-op for observable state.
	UpsertJob(ctx context.Context, userId string, job *entities.RenderJob) error
	DeleteJob(ctx context.Context, userId, renderId string) (bool, error)

	// NextPending returns the oldest pending job across all users, or
	// ErrJobNotFound when nothing is queued.
	NextPending(ctx context.Context) (*entities.RenderJob, error)
	// ClaimJob atomically moves pending -> processing, recording the worker
	// identity. It reports false when another worker won the claim.
	ClaimJob(ctx context.Context, renderId, workerId string) (bool, error)
	// FailStale force-fails processing jobs untouched for longer than
	// olderThan and returns how many were swept.
	FailStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// ProjectStore answers the worker loop's precondition check.
type ProjectStore interface {
	Exists(ctx context.Context, userId, projectId string) (bool, error)
}

// CreditLedger debits a user's balance. Spend is idempotent per
// (userId, reason, refId): a retried call returns the balance recorded by the
// first attempt without debiting again.
type CreditLedger interface {
	Spend(ctx context.Context, userId string, amount int64, reason, refId string) (int64, error)
	Balance(ctx context.Context, userId string) (int64, error)
}
