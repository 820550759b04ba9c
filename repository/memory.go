package repository

import (
	"context"
	"sync"
	"time"

	"worker-render/constant"
	"worker-render/entities"
)

// memoryStore is the in-process fallback used when no backend is configured.
// It lives for one process lifetime and is not a substitute for durable
// storage in multi-instance deployments.
type memoryStore struct {
	mu   sync.RWMutex
	jobs map[string]map[string]*entities.RenderJob
}

func NewMemoryStore() JobStore {
	return &memoryStore{jobs: make(map[string]map[string]*entities.RenderJob)}
}

func (s *memoryStore) LoadJobs(ctx context.Context, userId string) ([]*entities.RenderJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entities.RenderJob, 0, len(s.jobs[userId]))
	for _, job := range s.jobs[userId] {
		out = append(out, job.Clone())
	}
	return out, nil
}

func (s *memoryStore) GetJob(ctx context.Context, userId, renderId string) (*entities.RenderJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if job, ok := s.jobs[userId][renderId]; ok {
		return job.Clone(), nil
	}
	return nil, ErrJobNotFound
}

func (s *memoryStore) SaveJobs(ctx context.Context, userId string, jobs []*entities.RenderJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byId := make(map[string]*entities.RenderJob, len(jobs))
	for _, job := range jobs {
		c := job.Clone()
		c.UserId = userId
		byId[c.RenderId] = c
	}
	s.jobs[userId] = byId
	return nil
}

func (s *memoryStore) UpsertJob(ctx context.Context, userId string, job *entities.RenderJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobs[userId] == nil {
		s.jobs[userId] = make(map[string]*entities.RenderJob)
	}
	if existing, ok := s.jobs[userId][job.RenderId]; ok && existing.Terminal() {
		return nil
	}
	c := job.Clone()
	c.UserId = userId
	s.jobs[userId][c.RenderId] = c
	return nil
}

func (s *memoryStore) DeleteJob(ctx context.Context, userId, renderId string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[userId][renderId]; !ok {
		return false, nil
	}
	delete(s.jobs[userId], renderId)
	return true, nil
}

func (s *memoryStore) NextPending(ctx context.Context) (*entities.RenderJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var oldest *entities.RenderJob
	for _, byId := range s.jobs {
		for _, job := range byId {
			if job.Status != constant.RenderStatusPending {
				continue
			}
			if oldest == nil || job.CreatedAt < oldest.CreatedAt {
				oldest = job
			}
		}
	}
	if oldest == nil {
		return nil, ErrJobNotFound
	}
	return oldest.Clone(), nil
}

func (s *memoryStore) ClaimJob(ctx context.Context, renderId, workerId string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, byId := range s.jobs {
		job, ok := byId[renderId]
		if !ok {
			continue
		}
		if job.Status != constant.RenderStatusPending {
			return false, nil
		}
		job.BeginProcessing()
		job.ClaimedBy = workerId
		return true, nil
	}
	return false, ErrJobNotFound
}

func (s *memoryStore) FailStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	s.mu.Lock()
	defer s.mu.Unlock()
	swept := 0
	for _, byId := range s.jobs {
		for _, job := range byId {
			if job.Status == constant.RenderStatusProcessing && job.UpdatedAt < cutoff {
				job.Fail("render timed out")
				swept++
			}
		}
	}
	return swept, nil
}
