package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"worker-render/constant"
	"worker-render/dto"
)

const renderFps = 30

type clip struct {
	path     string
	duration float64
}

func baseFilter(format constant.Format) string {
	w, h := format.Resolution()
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,setsar=1", w, h, w, h)
}

// imageClipArgs builds the ffmpeg invocation for one still-image scene,
// applying the storyboard's zoom/pan/fade animation.
func imageClipArgs(img, out string, dur float64, animation string, format constant.Format) []string {
	w, h := format.Resolution()
	vf := baseFilter(format) + fmt.Sprintf(",fps=%d", renderFps)

	frames := int(dur*renderFps + 0.5)
	if frames < 1 {
		frames = 1
	}
	den := frames - 1
	if den < 1 {
		den = 1
	}
	size := fmt.Sprintf("s=%dx%d", w, h)
	const panZoom = 1.15
	const maxZoom = 1.25

	switch animation {
	case "zoom-in":
		z := fmt.Sprintf("min(1+(%v-1)*on/%d,%v)", maxZoom, den, maxZoom)
		vf += fmt.Sprintf(",zoompan=z='%s':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=1:%s,fps=%d", z, size, renderFps)
	case "zoom-out":
		z := fmt.Sprintf("max(%v-(%v-1)*on/%d,1.0)", maxZoom, maxZoom, den)
		vf += fmt.Sprintf(",zoompan=z='%s':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=1:%s,fps=%d", z, size, renderFps)
	case "pan-left":
		vf += fmt.Sprintf(",zoompan=z='%v':x='(iw-ow)*on/%d':y='(ih-oh)/2':d=1:%s,fps=%d", panZoom, den, size, renderFps)
	case "pan-right":
		vf += fmt.Sprintf(",zoompan=z='%v':x='(iw-ow)*(1-on/%d)':y='(ih-oh)/2':d=1:%s,fps=%d", panZoom, den, size, renderFps)
	case "pan-up":
		vf += fmt.Sprintf(",zoompan=z='%v':x='(iw-ow)/2':y='(ih-oh)*(1-on/%d)':d=1:%s,fps=%d", panZoom, den, size, renderFps)
	case "pan-down":
		vf += fmt.Sprintf(",zoompan=z='%v':x='(iw-ow)/2':y='(ih-oh)*on/%d':d=1:%s,fps=%d", panZoom, den, size, renderFps)
	case "fade-in":
		vf += ",fade=t=in:st=0:d=0.5"
	case "fade-out":
		st := dur - 0.5
		if st < 0 {
			st = 0
		}
		vf += fmt.Sprintf(",fade=t=out:st=%.2f:d=0.5", st)
	}

	return []string{
		"-y",
		"-framerate", fmt.Sprint(renderFps),
		"-loop", "1", "-t", fmt.Sprintf("%.2f", dur), "-i", img,
		"-vf", vf,
		"-r", fmt.Sprint(renderFps),
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		out,
	}
}

// videoClipArgs loops a finished animation clip to the scene duration.
func videoClipArgs(src, out string, dur float64, format constant.Format) []string {
	vf := baseFilter(format) + fmt.Sprintf(",fps=%d", renderFps)
	return []string{
		"-y",
		"-stream_loop", "-1", "-i", src,
		"-t", fmt.Sprintf("%.2f", dur),
		"-vf", vf,
		"-an",
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		out,
	}
}

// concatArgs assembles the final encode: clip concat (or an xfade chain when
// crossfade is on), optional watermark overlay, and the audio track muxed in.
func concatArgs(clips []clip, audioPath, out string, opts dto.RenderOptions, watermarkFile string) []string {
	args := []string{"-y"}
	for _, c := range clips {
		args = append(args, "-i", c.path)
	}

	watermark := opts.Watermark && watermarkFile != ""
	watermarkIdx := len(clips)
	audioIdx := len(clips)
	if watermark {
		args = append(args, "-i", watermarkFile)
		audioIdx++
	}
	args = append(args, "-i", audioPath)

	var fc string
	videoLabel := "[v]"
	if opts.Crossfade && len(clips) > 1 {
		d := opts.CrossfadeDuration
		prev := "[0:v]"
		offset := clips[0].duration - d
		var parts []string
		for i := 1; i < len(clips); i++ {
			label := fmt.Sprintf("[x%d]", i)
			parts = append(parts, fmt.Sprintf("%s[%d:v]xfade=transition=fade:duration=%.2f:offset=%.2f%s", prev, i, d, offset, label))
			prev = label
			offset += clips[i].duration - d
		}
		parts = append(parts, fmt.Sprintf("%sfps=%d[v]", prev, renderFps))
		fc = strings.Join(parts, ";")
	} else {
		var ins strings.Builder
		for i := range clips {
			ins.WriteString(fmt.Sprintf("[%d:v]", i))
		}
		fc = fmt.Sprintf("%sconcat=n=%d:v=1:a=0,setpts=N/%d/TB,fps=%d[v]", ins.String(), len(clips), renderFps, renderFps)
	}
	if watermark {
		fc += fmt.Sprintf(";[v][%d:v]overlay=main_w-overlay_w-24:main_h-overlay_h-24[vo]", watermarkIdx)
		videoLabel = "[vo]"
	}

	args = append(args,
		"-filter_complex", fc,
		"-map", videoLabel, "-map", fmt.Sprintf("%d:a:0", audioIdx),
		"-c:v", "libx264", "-pix_fmt", "yuv420p", "-r", fmt.Sprint(renderFps),
		"-c:a", "aac", "-b:a", "192k",
		"-shortest", "-movflags", "+faststart",
		"-video_track_timescale", "15360",
		out,
	)
	return args
}

func runFFmpeg(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("ffmpeg execution failed: %w", err)
	}
	return string(output), nil
}

func runFFprobe(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate,avg_frame_rate,time_base",
		"-of", "default=nk=1:nw=1",
		path,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("ffprobe execution failed: %w", err)
	}
	return string(output), nil
}

var dataUrlImageRe = regexp.MustCompile(`(?s)^data:image/[^;]+;base64,(.*)$`)

func decodeDataUrlImage(dataUrl, dest string) error {
	m := dataUrlImageRe.FindStringSubmatch(dataUrl)
	if m == nil {
		return fmt.Errorf("bad image dataUrl")
	}
	raw, err := base64.StdEncoding.DecodeString(m[1])
	if err != nil {
		return err
	}
	return os.WriteFile(dest, raw, 0644)
}
