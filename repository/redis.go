package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"worker-render/constant"
	"worker-render/entities"
)

// redisStore keeps each user's jobs as one JSON value with a retention TTL.
// Writes replace the whole list, so concurrent updates to different jobs of
// the same user can lose one of the writes. That limitation is accepted; the
// durable backend is required wherever it matters.
type redisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client) JobStore {
	return &redisStore{rdb: rdb, ttl: constant.JobListTTL}
}

func jobListKey(userId string) string {
	return fmt.Sprintf("render:jobs:%s", userId)
}

func (s *redisStore) LoadJobs(ctx context.Context, userId string) ([]*entities.RenderJob, error) {
	raw, err := s.rdb.Get(ctx, jobListKey(userId)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []*entities.RenderJob{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	var jobs []*entities.RenderJob
	if err := json.Unmarshal(raw, &jobs); err != nil {
		return nil, fmt.Errorf("%w: corrupt job list: %v", ErrStoreUnavailable, err)
	}
	return jobs, nil
}

func (s *redisStore) GetJob(ctx context.Context, userId, renderId string) (*entities.RenderJob, error) {
	jobs, err := s.LoadJobs(ctx, userId)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if job.RenderId == renderId {
			return job, nil
		}
	}
	return nil, ErrJobNotFound
}

func (s *redisStore) SaveJobs(ctx context.Context, userId string, jobs []*entities.RenderJob) error {
	raw, err := json.Marshal(jobs)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, jobListKey(userId), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *redisStore) UpsertJob(ctx context.Context, userId string, job *entities.RenderJob) error {
	job.UserId = userId
	jobs, err := s.LoadJobs(ctx, userId)
	if err != nil {
		return err
	}
	replaced := false
	for i, existing := range jobs {
		if existing.RenderId != job.RenderId {
			continue
		}
		if existing.Terminal() {
			// terminal records absorb late writes
			return nil
		}
		jobs[i] = job
		replaced = true
		break
	}
	if !replaced {
		jobs = append(jobs, job)
	}
	return s.SaveJobs(ctx, userId, jobs)
}

func (s *redisStore) DeleteJob(ctx context.Context, userId, renderId string) (bool, error) {
	jobs, err := s.LoadJobs(ctx, userId)
	if err != nil {
		return false, err
	}
	kept := jobs[:0]
	found := false
	for _, job := range jobs {
		if job.RenderId == renderId {
			found = true
			continue
		}
		kept = append(kept, job)
	}
	if !found {
		return false, nil
	}
	return true, s.SaveJobs(ctx, userId, kept)
}

func (s *redisStore) NextPending(ctx context.Context) (*entities.RenderJob, error) {
	return nil, ErrUnsupported
}

func (s *redisStore) ClaimJob(ctx context.Context, renderId, workerId string) (bool, error) {
	return false, ErrUnsupported
}

func (s *redisStore) FailStale(ctx context.Context, olderThan time.Duration) (int, error) {
	return 0, ErrUnsupported
}
