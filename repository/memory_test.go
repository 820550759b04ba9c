package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"worker-render/constant"
	"worker-render/entities"
)

func newJob(userId, renderId string, createdAt int64) *entities.RenderJob {
	job := entities.NewRenderJob(userId, renderId, "p1", "")
	job.CreatedAt = createdAt
	return job
}

func TestMemoryStoreLoadEmpty(t *testing.T) {
	store := NewMemoryStore()
	jobs, err := store.LoadJobs(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("LoadJobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("got %d jobs, want 0", len(jobs))
	}
}

func TestMemoryStoreUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	job := newJob("u1", "r1", 100)
	if err := store.UpsertJob(ctx, "u1", job); err != nil {
		t.Fatalf("UpsertJob: %v", err)
	}
	// idempotent: same content twice, same observable state
	if err := store.UpsertJob(ctx, "u1", job); err != nil {
		t.Fatalf("UpsertJob repeat: %v", err)
	}

	got, err := store.GetJob(ctx, "u1", "r1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.RenderId != "r1" || got.Status != constant.RenderStatusPending {
		t.Fatalf("unexpected job %+v", got)
	}

	jobs, _ := store.LoadJobs(ctx, "u1")
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}

	if _, err := store.GetJob(ctx, "u1", "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestMemoryStoreUserIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.UpsertJob(ctx, "u1", newJob("u1", "r1", 1))
	_ = store.UpsertJob(ctx, "u2", newJob("u2", "r2", 2))

	jobs, _ := store.LoadJobs(ctx, "u1")
	if len(jobs) != 1 || jobs[0].RenderId != "r1" {
		t.Fatalf("u1 sees %+v, cross-user leak", jobs)
	}
	if _, err := store.GetJob(ctx, "u1", "r2"); !errors.Is(err, ErrJobNotFound) {
		t.Fatal("u1 must not see u2's job")
	}
}

func TestMemoryStoreTerminalAbsorbsUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	job := newJob("u1", "r1", 1)
	job.BeginProcessing()
	job.Complete("url")
	_ = store.UpsertJob(ctx, "u1", job)

	stale := newJob("u1", "r1", 1)
	stale.BeginProcessing()
	stale.SetProgress(10)
	_ = store.UpsertJob(ctx, "u1", stale)

	got, _ := store.GetJob(ctx, "u1", "r1")
	if got.Status != constant.RenderStatusComplete || got.Progress != 100 {
		t.Fatalf("terminal record overwritten: %+v", got)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.UpsertJob(ctx, "u1", newJob("u1", "r1", 1))

	deleted, err := store.DeleteJob(ctx, "u1", "r1")
	if err != nil || !deleted {
		t.Fatalf("DeleteJob = %v, %v; want true, nil", deleted, err)
	}
	deleted, err = store.DeleteJob(ctx, "u1", "r1")
	if err != nil || deleted {
		t.Fatalf("second delete = %v, %v; want false, nil", deleted, err)
	}
}

func TestMemoryStoreSaveJobsReplacesList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.UpsertJob(ctx, "u1", newJob("u1", "r1", 1))
	_ = store.UpsertJob(ctx, "u1", newJob("u1", "r2", 2))

	if err := store.SaveJobs(ctx, "u1", []*entities.RenderJob{newJob("u1", "r3", 3)}); err != nil {
		t.Fatalf("SaveJobs: %v", err)
	}
	jobs, _ := store.LoadJobs(ctx, "u1")
	if len(jobs) != 1 || jobs[0].RenderId != "r3" {
		t.Fatalf("SaveJobs did not replace the list: %+v", jobs)
	}
}

func TestMemoryStoreNextPendingOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.UpsertJob(ctx, "u1", newJob("u1", "newer", 200))
	_ = store.UpsertJob(ctx, "u2", newJob("u2", "older", 100))

	processing := newJob("u1", "busy", 50)
	processing.BeginProcessing()
	_ = store.UpsertJob(ctx, "u1", processing)

	job, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if job.RenderId != "older" {
		t.Fatalf("NextPending = %q, want oldest pending %q", job.RenderId, "older")
	}
}

func TestMemoryStoreNextPendingEmpty(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.NextPending(context.Background()); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestMemoryStoreClaimOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.UpsertJob(ctx, "u1", newJob("u1", "r1", 1))

	claimed, err := store.ClaimJob(ctx, "r1", "worker-a")
	if err != nil || !claimed {
		t.Fatalf("first claim = %v, %v; want true, nil", claimed, err)
	}
	claimed, err = store.ClaimJob(ctx, "r1", "worker-b")
	if err != nil || claimed {
		t.Fatalf("second claim = %v, %v; want false, nil", claimed, err)
	}

	got, _ := store.GetJob(ctx, "u1", "r1")
	if got.Status != constant.RenderStatusProcessing {
		t.Fatalf("status = %q, want processing after claim", got.Status)
	}
}

func TestMemoryStoreFailStale(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	stale := newJob("u1", "stuck", 1)
	stale.BeginProcessing()
	stale.UpdatedAt = time.Now().Add(-2 * time.Hour).UnixMilli()
	_ = store.UpsertJob(ctx, "u1", stale)

	fresh := newJob("u1", "active", 2)
	fresh.BeginProcessing()
	_ = store.UpsertJob(ctx, "u1", fresh)

	swept, err := store.FailStale(ctx, time.Hour)
	if err != nil {
		t.Fatalf("FailStale: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	got, _ := store.GetJob(ctx, "u1", "stuck")
	if got.Status != constant.RenderStatusFailed || got.Error == "" {
		t.Fatalf("stale job not failed: %+v", got)
	}
	got, _ = store.GetJob(ctx, "u1", "active")
	if got.Status != constant.RenderStatusProcessing {
		t.Fatalf("fresh job swept: %+v", got)
	}
}
