package entities

import (
	"strings"
	"testing"
	"worker-render/constant"
)

func TestNewRenderJobDefaults(t *testing.T) {
	job := NewRenderJob("u1", "r1", "p1", "")

	if job.Status != constant.RenderStatusPending {
		t.Fatalf("status = %q, want pending", job.Status)
	}
	if job.Progress != 0 {
		t.Fatalf("progress = %d, want 0", job.Progress)
	}
	if job.ConfigId != constant.DefaultConfigId {
		t.Fatalf("configId = %q, want %q", job.ConfigId, constant.DefaultConfigId)
	}
	if job.CreatedAt == 0 || job.UpdatedAt == 0 {
		t.Fatal("timestamps not set")
	}
}

func TestHappyPathTransitions(t *testing.T) {
	job := NewRenderJob("u1", "r1", "p1", "")

	if !job.BeginProcessing() {
		t.Fatal("BeginProcessing from pending should succeed")
	}
	for _, p := range []int{0, 50, 100} {
		job.SetProgress(p)
	}
	if job.Progress != 100 {
		t.Fatalf("progress = %d, want 100", job.Progress)
	}
	if !job.Complete("https://cdn.example/renders/p1/r1.mp4") {
		t.Fatal("Complete from processing should succeed")
	}
	if job.Status != constant.RenderStatusComplete {
		t.Fatalf("status = %q, want complete", job.Status)
	}
	if job.OutputUrl == "" {
		t.Fatal("outputUrl not set on complete")
	}
}

func TestCompleteForcesProgressTo100(t *testing.T) {
	job := NewRenderJob("u1", "r1", "p1", "")
	job.BeginProcessing()
	job.SetProgress(40)

	job.Complete("u")
	if job.Progress != 100 {
		t.Fatalf("progress = %d, want 100 after complete", job.Progress)
	}
}

func TestFailClearsOutputUrl(t *testing.T) {
	job := NewRenderJob("u1", "r2", "p1", "")
	job.BeginProcessing()

	if !job.Fail("encoder crashed") {
		t.Fatal("Fail from processing should succeed")
	}
	if job.Status != constant.RenderStatusFailed {
		t.Fatalf("status = %q, want failed", job.Status)
	}
	if job.Error != "encoder crashed" {
		t.Fatalf("error = %q", job.Error)
	}
	if job.OutputUrl != "" {
		t.Fatalf("outputUrl = %q, want unset on failure", job.OutputUrl)
	}
}

func TestFailFromPending(t *testing.T) {
	job := NewRenderJob("u1", "r4", "missing", "")
	if !job.Fail("project missing no longer exists") {
		t.Fatal("pending jobs must fail directly on precondition errors")
	}
}

func TestTerminalStatesAbsorbLaterWrites(t *testing.T) {
	cases := []struct {
		name     string
		finalize func(j *RenderJob)
		want     constant.RenderStatus
	}{
		{"complete", func(j *RenderJob) { j.Complete("u") }, constant.RenderStatusComplete},
		{"failed", func(j *RenderJob) { j.Fail("boom") }, constant.RenderStatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := NewRenderJob("u1", "r1", "p1", "")
			job.BeginProcessing()
			job.SetProgress(60)
			tc.finalize(job)

			if job.SetProgress(70) {
				t.Error("stale progress accepted after terminal state")
			}
			if job.BeginProcessing() {
				t.Error("BeginProcessing accepted after terminal state")
			}
			if job.Complete("other") && tc.want != constant.RenderStatusComplete {
				t.Error("Complete accepted after terminal state")
			}
			if job.Fail("other") {
				t.Error("Fail accepted after terminal state")
			}
			if job.Status != tc.want {
				t.Errorf("status = %q, want %q", job.Status, tc.want)
			}
		})
	}
}

func TestProgressMonotonicAndClamped(t *testing.T) {
	job := NewRenderJob("u1", "r1", "p1", "")

	if job.SetProgress(10) {
		t.Error("progress accepted while pending")
	}

	job.BeginProcessing()
	if !job.SetProgress(50) {
		t.Error("progress 50 rejected")
	}
	if job.SetProgress(30) {
		t.Error("backwards progress accepted")
	}
	if job.Progress != 50 {
		t.Fatalf("progress = %d, want 50", job.Progress)
	}
	job.SetProgress(500)
	if job.Progress != 100 {
		t.Fatalf("progress = %d, want clamped to 100", job.Progress)
	}
}

func TestAppendLogTailBounded(t *testing.T) {
	job := NewRenderJob("u1", "r1", "p1", "")
	job.AppendLogTail(strings.Repeat("a", constant.MaxLogTailBytes))
	job.AppendLogTail("tail-end")

	if len(job.LogTail) != constant.MaxLogTailBytes {
		t.Fatalf("logTail length = %d, want %d", len(job.LogTail), constant.MaxLogTailBytes)
	}
	if !strings.HasSuffix(job.LogTail, "tail-end") {
		t.Fatal("logTail should keep the most recent output")
	}
}
