package entities

import (
	"time"
	"worker-render/constant"
)

// RenderJob is one attempt to produce an encoded video from a project's assets
// and audio. Timestamps are epoch milliseconds so the record round-trips
// identically through postgres, redis and the HTTP surface.
type RenderJob struct {
	RenderId  string                `json:"renderId" gorm:"column:render_id;primaryKey"`
	UserId    string                `json:"userId" gorm:"column:user_id;index"`
	ProjectId string                `json:"projectId" gorm:"column:project_id"`
	ConfigId  string                `json:"configId" gorm:"column:config_id"`
	Status    constant.RenderStatus `json:"status" gorm:"column:status"`
	Progress  int                   `json:"progress" gorm:"column:progress"`
	OutputUrl string                `json:"outputUrl,omitempty" gorm:"column:output_url"`
	Error     string                `json:"error,omitempty" gorm:"column:error"`
	LogTail   string                `json:"logTail,omitempty" gorm:"column:log_tail"`
	ClaimedBy string                `json:"-" gorm:"column:claimed_by"`
	CreatedAt int64                 `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt int64                 `json:"updatedAt" gorm:"column:updated_at"`
}

func (RenderJob) TableName() string {
	return "render_jobs"
}

func NewRenderJob(userId, renderId, projectId, configId string) *RenderJob {
	if configId == "" {
		configId = constant.DefaultConfigId
	}
	now := time.Now().UnixMilli()
	return &RenderJob{
		RenderId:  renderId,
		UserId:    userId,
		ProjectId: projectId,
		ConfigId:  configId,
		Status:    constant.RenderStatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (j *RenderJob) Terminal() bool {
	return j.Status.Terminal()
}

// BeginProcessing moves the job out of pending. It reports whether the record
// changed; calling it on a job already processing or terminal is a no-op.
func (j *RenderJob) BeginProcessing() bool {
	if j.Status != constant.RenderStatusPending {
		return false
	}
	j.Status = constant.RenderStatusProcessing
	j.touch()
	return true
}

// SetProgress records executor progress. Progress is clamped to 0-100,
// monotonic while processing, and rejected outside processing so a stale
// update arriving after a terminal write never resurrects the job.
func (j *RenderJob) SetProgress(progress int) bool {
	if j.Status != constant.RenderStatusProcessing {
		return false
	}
	if progress > 100 {
		progress = 100
	}
	if progress <= j.Progress {
		return false
	}
	j.Progress = progress
	j.touch()
	return true
}

// Complete transitions processing -> complete, setting the output location and
// forcing progress to 100 atomically with the status change.
func (j *RenderJob) Complete(outputUrl string) bool {
	if j.Status != constant.RenderStatusProcessing {
		return false
	}
	j.Status = constant.RenderStatusComplete
	j.Progress = 100
	j.OutputUrl = outputUrl
	j.touch()
	return true
}

// Fail moves the job to the failed terminal state. A pending job may fail
// directly (precondition errors detected before the executor runs).
func (j *RenderJob) Fail(reason string) bool {
	if j.Terminal() {
		return false
	}
	j.Status = constant.RenderStatusFailed
	j.Error = reason
	j.OutputUrl = ""
	j.touch()
	return true
}

// AppendLogTail keeps the last MaxLogTailBytes of diagnostic output.
func (j *RenderJob) AppendLogTail(s string) {
	if s == "" {
		return
	}
	tail := j.LogTail + s
	if len(tail) > constant.MaxLogTailBytes {
		tail = tail[len(tail)-constant.MaxLogTailBytes:]
	}
	j.LogTail = tail
}

func (j *RenderJob) Clone() *RenderJob {
	c := *j
	return &c
}

func (j *RenderJob) touch() {
	j.UpdatedAt = time.Now().UnixMilli()
}
