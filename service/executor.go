package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"

	"worker-render/dto"
	"worker-render/entities"
)

// Executor runs one render to a terminal state. All status, progress and
// logTail mutation happens through the job store; callers only learn the
// outcome by polling the record.
type Executor interface {
	Execute(ctx context.Context, userId string, job *entities.RenderJob, opts dto.RenderOptions) error
	Cleanup(renderId string) error
}

// FFmpegExecutor composes the storyboard into clips with ffmpeg, concatenates
// them over the audio track and uploads the result to object storage.
type FFmpegExecutor struct {
	writer        *JobWriter
	payload       PayloadSource
	storage       *minio.Client
	bucket        string
	publicBaseURL string
	tempRoot      string
	watermarkFile string
	client        *http.Client
}

func NewFFmpegExecutor(writer *JobWriter, payload PayloadSource, storage *minio.Client, bucket, publicBaseURL, tempRoot, watermarkFile string) *FFmpegExecutor {
	if tempRoot == "" {
		tempRoot = "temp"
	}
	return &FFmpegExecutor{
		writer:        writer,
		payload:       payload,
		storage:       storage,
		bucket:        bucket,
		publicBaseURL: publicBaseURL,
		tempRoot:      tempRoot,
		watermarkFile: watermarkFile,
		client:        &http.Client{},
	}
}

func (e *FFmpegExecutor) tempDir(renderId string) string {
	return filepath.Join(e.tempRoot, "render_"+renderId)
}

// Cleanup removes the working directory for a render. Called on success and
// by the pipeline's delete operation.
func (e *FFmpegExecutor) Cleanup(renderId string) error {
	return os.RemoveAll(e.tempDir(renderId))
}

func (e *FFmpegExecutor) Execute(ctx context.Context, userId string, job *entities.RenderJob, opts dto.RenderOptions) error {
	if job.Terminal() {
		zerolog.Ctx(ctx).Info().Str("render_id", job.RenderId).Msg("job already terminal, skipping")
		return nil
	}
	if err := e.writer.BeginProcessing(ctx, userId, job.RenderId); err != nil {
		return err
	}

	var logBuf strings.Builder
	outputUrl, err := e.render(ctx, userId, job, opts, &logBuf)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("render_id", job.RenderId).Msg("render failed")
		if failErr := e.writer.Fail(ctx, userId, job.RenderId, err.Error(), "render failed: "+err.Error()); failErr != nil {
			zerolog.Ctx(ctx).Error().Err(failErr).Msg("failed to record render failure")
		}
		return err
	}

	if err := e.writer.Complete(ctx, userId, job.RenderId, outputUrl, "render complete\n"+logBuf.String()); err != nil {
		return err
	}
	// the output is durable; the working area can go
	if err := e.Cleanup(job.RenderId); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("render_id", job.RenderId).Msg("temp cleanup failed")
	}
	zerolog.Ctx(ctx).Info().Str("render_id", job.RenderId).Str("output_url", outputUrl).Msg("render complete")
	return nil
}

func (e *FFmpegExecutor) render(ctx context.Context, userId string, job *entities.RenderJob, opts dto.RenderOptions, logBuf *strings.Builder) (string, error) {
	dir := e.tempDir(job.RenderId)
	_ = os.RemoveAll(dir)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", err
	}

	payload, err := e.payload.Fetch(ctx, userId, job.RenderId)
	if err != nil {
		return "", fmt.Errorf("fetch render payload: %w", err)
	}
	if payload.AudioUrl == "" {
		return "", fmt.Errorf("payload audioUrl missing")
	}
	if payload.Options != nil {
		opts = payload.Options.Normalized()
	}

	assets := make(map[string]*dto.Asset, len(payload.Assets))
	for i := range payload.Assets {
		if payload.Assets[i].Id != "" {
			assets[payload.Assets[i].Id] = &payload.Assets[i]
		}
	}

	audioPath := filepath.Join(dir, "audio.bin")
	if err := e.downloadFile(ctx, payload.AudioUrl, audioPath); err != nil {
		return "", fmt.Errorf("download audio: %w", err)
	}
	_ = e.writer.SetProgress(ctx, userId, job.RenderId, 5)

	clips, err := e.renderClips(ctx, userId, job, payload, assets, opts, dir, logBuf)
	if err != nil {
		return "", err
	}
	if len(clips) == 0 {
		return "", fmt.Errorf("no clips generated")
	}

	outPath := filepath.Join(dir, "output.mp4")
	args := concatArgs(clips, audioPath, outPath, opts, e.watermarkPath())
	if out, err := runFFmpeg(ctx, args); err != nil {
		logBuf.WriteString(out)
		return "", err
	}
	_ = e.writer.SetProgress(ctx, userId, job.RenderId, 90)

	probe, err := runFFprobe(ctx, outPath)
	if err != nil {
		return "", err
	}
	logBuf.WriteString(strings.TrimSpace(probe))

	key := fmt.Sprintf("renders/%s/%s.mp4", job.ProjectId, job.RenderId)
	_, err = e.storage.FPutObject(ctx, e.bucket, key, outPath, minio.PutObjectOptions{ContentType: "video/mp4"})
	if err != nil {
		return "", fmt.Errorf("upload output: %w", err)
	}
	_ = e.writer.SetProgress(ctx, userId, job.RenderId, 99)

	return strings.TrimRight(e.publicBaseURL, "/") + "/" + key, nil
}

func (e *FFmpegExecutor) renderClips(ctx context.Context, userId string, job *entities.RenderJob, payload *dto.RenderPayload, assets map[string]*dto.Asset, opts dto.RenderOptions, dir string, logBuf *strings.Builder) ([]clip, error) {
	var clips []clip
	total := len(payload.Storyboard)
	for i, item := range payload.Storyboard {
		asset, ok := assets[item.AssetId]
		if !ok {
			continue
		}

		dur := item.DurationSec
		if dur <= 0 {
			dur = 5
		}

		outClip := filepath.Join(dir, fmt.Sprintf("clip_%03d.mp4", i))
		var args []string
		if videoUrl := asset.CompletedVideoUrl(); strings.HasPrefix(videoUrl, "http") {
			srcVid := filepath.Join(dir, fmt.Sprintf("src_%03d.mp4", i))
			if err := e.downloadFile(ctx, videoUrl, srcVid); err != nil {
				return nil, fmt.Errorf("download animation clip: %w", err)
			}
			args = videoClipArgs(srcVid, outClip, dur, opts.Format)
		} else {
			if asset.DataUrl == "" {
				continue
			}
			img := filepath.Join(dir, fmt.Sprintf("src_%03d.png", i))
			if err := decodeDataUrlImage(asset.DataUrl, img); err != nil {
				return nil, fmt.Errorf("asset %s: %w", asset.Id, err)
			}
			args = imageClipArgs(img, outClip, dur, item.Animation, opts.Format)
		}

		if out, err := runFFmpeg(ctx, args); err != nil {
			logBuf.WriteString(out)
			return nil, err
		}
		clips = append(clips, clip{path: outClip, duration: dur})
		_ = e.writer.SetProgress(ctx, userId, job.RenderId, 5+(i+1)*80/total)
	}
	return clips, nil
}

func (e *FFmpegExecutor) watermarkPath() string {
	if e.watermarkFile == "" {
		return ""
	}
	if _, err := os.Stat(e.watermarkFile); err != nil {
		return ""
	}
	return e.watermarkFile
}

func (e *FFmpegExecutor) downloadFile(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}
