package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"worker-render/constant"
	"worker-render/dto"
	"worker-render/entities"
	"worker-render/repository"
)

type fakeExecutor struct {
	executed []string
	cleaned  []string
}

func (f *fakeExecutor) Execute(ctx context.Context, userId string, job *entities.RenderJob, opts dto.RenderOptions) error {
	f.executed = append(f.executed, job.RenderId)
	return nil
}

func (f *fakeExecutor) Cleanup(renderId string) error {
	f.cleaned = append(f.cleaned, renderId)
	return nil
}

type recordingDispatcher struct {
	messages []dto.RenderMessage
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, msg dto.RenderMessage) error {
	d.messages = append(d.messages, msg)
	return nil
}

func newTestPipeline(t *testing.T, dispatcher Dispatcher, exempt SpendExemptPolicy) (*Pipeline, repository.JobStore, repository.CreditLedger, *fakeExecutor) {
	t.Helper()
	store := repository.NewMemoryStore()
	ledger := repository.NewMemoryLedger(map[string]int64{"u1": 1000})
	executor := &fakeExecutor{}
	pipeline := NewPipeline(store, ledger, executor, dispatcher, 100, exempt)
	return pipeline, store, ledger, executor
}

func TestCreateRenderJobDefaults(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	pipeline, store, _, _ := newTestPipeline(t, dispatcher, nil)

	job, err := pipeline.CreateRenderJob(context.Background(), "u1",
		dto.CreateRenderRequest{RenderId: "r1", ProjectId: "p1"}, dto.RenderOptions{})
	if err != nil {
		t.Fatalf("CreateRenderJob: %v", err)
	}
	if job.Status != constant.RenderStatusPending || job.Progress != 0 {
		t.Fatalf("job = %+v, want pending/0", job)
	}
	if job.ConfigId != constant.DefaultConfigId {
		t.Fatalf("configId = %q", job.ConfigId)
	}

	if _, err := store.GetJob(context.Background(), "u1", "r1"); err != nil {
		t.Fatalf("job not persisted: %v", err)
	}

	if len(dispatcher.messages) != 1 {
		t.Fatalf("dispatched %d messages, want 1", len(dispatcher.messages))
	}
	opts := dispatcher.messages[0].Options
	if opts.Format != constant.FormatHorizontal || opts.Watermark || opts.Crossfade || opts.CrossfadeDuration != 0.5 {
		t.Fatalf("dispatched options = %+v, want defaults", opts)
	}
}

func TestCreateRenderJobValidation(t *testing.T) {
	cases := []struct {
		name   string
		userId string
		req    dto.CreateRenderRequest
		opts   dto.RenderOptions
	}{
		{"missing userId", "", dto.CreateRenderRequest{RenderId: "r1", ProjectId: "p1"}, dto.RenderOptions{}},
		{"missing renderId", "u1", dto.CreateRenderRequest{ProjectId: "p1"}, dto.RenderOptions{}},
		{"missing projectId", "u1", dto.CreateRenderRequest{RenderId: "r1"}, dto.RenderOptions{}},
		{"unknown format", "u1", dto.CreateRenderRequest{RenderId: "r1", ProjectId: "p1"}, dto.RenderOptions{Format: "cinemascope"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pipeline, store, ledger, _ := newTestPipeline(t, nil, nil)
			_, err := pipeline.CreateRenderJob(context.Background(), tc.userId, tc.req, tc.opts)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("err = %v, want ErrInvalidRequest", err)
			}
			// no partial state
			jobs, _ := store.LoadJobs(context.Background(), "u1")
			if len(jobs) != 0 {
				t.Fatal("job persisted despite validation error")
			}
			if balance, _ := ledger.Balance(context.Background(), "u1"); balance != 1000 {
				t.Fatalf("balance = %d, charged despite validation error", balance)
			}
		})
	}
}

func TestCreateRenderJobInsufficientBalance(t *testing.T) {
	store := repository.NewMemoryStore()
	ledger := repository.NewMemoryLedger(map[string]int64{"u1": 10})
	pipeline := NewPipeline(store, ledger, &fakeExecutor{}, nil, 100, nil)

	_, err := pipeline.CreateRenderJob(context.Background(), "u1",
		dto.CreateRenderRequest{RenderId: "r1", ProjectId: "p1"}, dto.RenderOptions{})
	if !errors.Is(err, repository.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	jobs, _ := store.LoadJobs(context.Background(), "u1")
	if len(jobs) != 0 {
		t.Fatal("job persisted despite failed charge")
	}
}

func TestCreateRenderJobDuplicate(t *testing.T) {
	pipeline, _, ledger, _ := newTestPipeline(t, nil, nil)
	ctx := context.Background()
	req := dto.CreateRenderRequest{RenderId: "r1", ProjectId: "p1"}

	if _, err := pipeline.CreateRenderJob(ctx, "u1", req, dto.RenderOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := pipeline.CreateRenderJob(ctx, "u1", req, dto.RenderOptions{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("duplicate create err = %v, want ErrInvalidRequest", err)
	}
	// the first attempt's charge is the only one
	if balance, _ := ledger.Balance(ctx, "u1"); balance != 900 {
		t.Fatalf("balance = %d, want 900", balance)
	}
}

func TestCreateRenderJobExemptUser(t *testing.T) {
	exempt := func(userId string) bool { return userId == "u1" }
	pipeline, _, ledger, _ := newTestPipeline(t, nil, exempt)

	if _, err := pipeline.CreateRenderJob(context.Background(), "u1",
		dto.CreateRenderRequest{RenderId: "r1", ProjectId: "p1"}, dto.RenderOptions{}); err != nil {
		t.Fatal(err)
	}
	if balance, _ := ledger.Balance(context.Background(), "u1"); balance != 1000 {
		t.Fatalf("balance = %d, exempt user was charged", balance)
	}
}

func TestHappyPathPolling(t *testing.T) {
	pipeline, store, _, _ := newTestPipeline(t, nil, nil)
	ctx := context.Background()
	writer := NewJobWriter(store)

	if _, err := pipeline.CreateRenderJob(ctx, "u1",
		dto.CreateRenderRequest{RenderId: "R1", ProjectId: "P1"}, dto.RenderOptions{}); err != nil {
		t.Fatal(err)
	}

	_ = writer.BeginProcessing(ctx, "u1", "R1")
	for _, p := range []int{0, 50, 100} {
		_ = writer.SetProgress(ctx, "u1", "R1", p)
		job, err := pipeline.GetRenderJob(ctx, "u1", "R1")
		if err != nil {
			t.Fatal(err)
		}
		if p > 0 && job.Progress != p {
			t.Fatalf("polled progress = %d, want %d", job.Progress, p)
		}
	}

	_ = writer.Complete(ctx, "u1", "R1", "U", "render complete")
	job, _ := pipeline.GetRenderJob(ctx, "u1", "R1")
	if job.Status != constant.RenderStatusComplete || job.Progress != 100 || job.OutputUrl != "U" {
		t.Fatalf("final job = %+v, want complete/100/U", job)
	}
}

func TestFailurePathPolling(t *testing.T) {
	pipeline, store, _, _ := newTestPipeline(t, nil, nil)
	ctx := context.Background()
	writer := NewJobWriter(store)

	if _, err := pipeline.CreateRenderJob(ctx, "u1",
		dto.CreateRenderRequest{RenderId: "R2", ProjectId: "P1"}, dto.RenderOptions{}); err != nil {
		t.Fatal(err)
	}
	_ = writer.BeginProcessing(ctx, "u1", "R2")
	_ = writer.Fail(ctx, "u1", "R2", "encoder crashed", "ffmpeg exit 1")

	job, _ := pipeline.GetRenderJob(ctx, "u1", "R2")
	if job.Status != constant.RenderStatusFailed || job.Error != "encoder crashed" {
		t.Fatalf("job = %+v, want failed/encoder crashed", job)
	}
	if job.OutputUrl != "" {
		t.Fatal("outputUrl set on failed job")
	}

	// terminal state is stable across further writes
	_ = writer.SetProgress(ctx, "u1", "R2", 80)
	_ = writer.Complete(ctx, "u1", "R2", "late", "")
	job, _ = pipeline.GetRenderJob(ctx, "u1", "R2")
	if job.Status != constant.RenderStatusFailed || job.OutputUrl != "" {
		t.Fatalf("terminal state mutated: %+v", job)
	}
}

func TestListRenderJobs(t *testing.T) {
	pipeline, store, _, _ := newTestPipeline(t, nil, nil)
	ctx := context.Background()

	// insertion order deliberately scrambled
	for i, created := range []int64{300, 100, 500, 200, 400} {
		job := entities.NewRenderJob("u1", fmt.Sprintf("r%d", i), "p1", "")
		job.CreatedAt = created
		if i%2 == 0 {
			job.BeginProcessing()
			job.Fail("x")
		}
		_ = store.UpsertJob(ctx, "u1", job)
	}

	jobs, err := pipeline.ListRenderJobs(ctx, "u1", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 5 {
		t.Fatalf("got %d jobs, want 5", len(jobs))
	}
	for i := 1; i < len(jobs); i++ {
		if jobs[i-1].CreatedAt < jobs[i].CreatedAt {
			t.Fatalf("not sorted newest first: %d before %d", jobs[i-1].CreatedAt, jobs[i].CreatedAt)
		}
	}

	jobs, _ = pipeline.ListRenderJobs(ctx, "u1", constant.RenderStatusFailed, 0)
	if len(jobs) != 3 {
		t.Fatalf("failed filter got %d, want 3", len(jobs))
	}

	jobs, _ = pipeline.ListRenderJobs(ctx, "u1", "", 2)
	if len(jobs) != 2 {
		t.Fatalf("limit 2 got %d", len(jobs))
	}
	if jobs[0].CreatedAt != 500 || jobs[1].CreatedAt != 400 {
		t.Fatalf("limit kept wrong jobs: %d, %d", jobs[0].CreatedAt, jobs[1].CreatedAt)
	}
}

func TestDeleteRenderJob(t *testing.T) {
	pipeline, _, _, executor := newTestPipeline(t, nil, nil)
	ctx := context.Background()

	if _, err := pipeline.CreateRenderJob(ctx, "u1",
		dto.CreateRenderRequest{RenderId: "r1", ProjectId: "p1"}, dto.RenderOptions{}); err != nil {
		t.Fatal(err)
	}

	deleted, err := pipeline.DeleteRenderJob(ctx, "u1", "r1")
	if err != nil || !deleted {
		t.Fatalf("delete = %v, %v; want true, nil", deleted, err)
	}
	if len(executor.cleaned) != 1 || executor.cleaned[0] != "r1" {
		t.Fatalf("executor cleanup calls = %v, want [r1]", executor.cleaned)
	}

	deleted, err = pipeline.DeleteRenderJob(ctx, "u1", "r1")
	if err != nil || deleted {
		t.Fatalf("delete of missing job = %v, %v; want false, nil", deleted, err)
	}
	if len(executor.cleaned) != 1 {
		t.Fatal("cleanup ran for a job that did not exist")
	}
}
