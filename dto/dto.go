package dto

import "worker-render/constant"

type CreateRenderRequest struct {
	RenderId  string `json:"renderId"`
	ProjectId string `json:"projectId"`
	ConfigId  string `json:"configId"`
}

// RenderMessage is the dispatch payload published to the broker (or handed to
// the inline dispatcher) when a job is created.
type RenderMessage struct {
	UserId   string        `json:"userId"`
	RenderId string        `json:"renderId"`
	Options  RenderOptions `json:"options"`
}

type RenderOptions struct {
	Format            constant.Format `json:"format"`
	Watermark         bool            `json:"watermark"`
	Crossfade         bool            `json:"crossfade"`
	CrossfadeDuration float64         `json:"crossfadeDuration"`
}

func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		Format:            constant.FormatHorizontal,
		Watermark:         false,
		Crossfade:         false,
		CrossfadeDuration: 0.5,
	}
}

// Normalized fills omitted fields with their defaults. It never rejects; an
// unknown format is reported by Validate, not here.
func (o RenderOptions) Normalized() RenderOptions {
	if o.Format == "" {
		o.Format = constant.FormatHorizontal
	}
	if o.CrossfadeDuration <= 0 {
		o.CrossfadeDuration = 0.5
	}
	return o
}

func (o RenderOptions) Validate() bool {
	return o.Format == "" || o.Format.Valid()
}

type RenderStatusResponse struct {
	RenderId  string                `json:"renderId"`
	Status    constant.RenderStatus `json:"status"`
	Progress  int                   `json:"progress"`
	OutputUrl string                `json:"outputUrl,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// RenderPayload is what the payload source returns for one render: the audio
// track, the storyboard timing and the assets it references. Options, when
// present, override the defaults for worker-loop deployments where the
// dispatch message is not available.
type RenderPayload struct {
	ProjectId  string           `json:"projectId"`
	AudioUrl   string           `json:"audioUrl"`
	Storyboard []StoryboardItem `json:"storyboard"`
	Assets     []Asset          `json:"assets"`
	Options    *RenderOptions   `json:"options,omitempty"`
}

type StoryboardItem struct {
	AssetId     string  `json:"assetId"`
	DurationSec float64 `json:"durationSec"`
	Animation   string  `json:"animation"`
}

type Asset struct {
	Id        string          `json:"id"`
	DataUrl   string          `json:"dataUrl,omitempty"`
	Animation *AssetAnimation `json:"animation,omitempty"`
}

type AssetAnimation struct {
	Status   string `json:"status"`
	VideoUrl string `json:"videoUrl,omitempty"`
}

// CompletedVideoUrl returns the finished animation clip to use in place of
// the still image, or empty when none exists.
func (a *Asset) CompletedVideoUrl() string {
	if a.Animation != nil && a.Animation.Status == "completed" {
		return a.Animation.VideoUrl
	}
	return ""
}
