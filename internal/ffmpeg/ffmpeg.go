// Package ffmpeg wraps the external encoding engine as subprocess
// invocations. The pipeline talks to it through narrow interfaces
// (render clip, concat, mux, probe) so the engine and its command-line
// syntax stay swappable without touching pipeline logic.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Overlay is one photo spotlight inside a clip. Start and End are seconds
// relative to the clip; windows never overlap within one clip.
type Overlay struct {
	Photo string
	Start float64
	End   float64
}

// ClipSpec describes one time-accurate segment clip: background video looped
// and center-cropped to the portrait frame, trimmed to Duration, with photo
// spotlights composited over it. Clips carry no audio.
type ClipSpec struct {
	Background string
	Duration   float64
	Width      int
	Height     int
	FPS        int

	Overlays     []Overlay
	KenBurnsZoom float64
	FadeSeconds  float64

	Output string
}

// MuxSpec describes the final assembly: the concatenated visual track, the
// voice track as primary audio, optional looped background music, and an
// optional caption file burned into the frames.
type MuxSpec struct {
	Video       string
	Voice       string
	Music       string
	MusicVolume float64
	Subtitles   string
	Output      string
}

// FFmpeg invokes ffmpeg/ffprobe binaries.
type FFmpeg struct {
	Bin      string
	ProbeBin string
	Log      *logrus.Logger
}

// New returns an FFmpeg wrapper using the binaries on PATH.
func New(log *logrus.Logger) *FFmpeg {
	return &FFmpeg{Bin: "ffmpeg", ProbeBin: "ffprobe", Log: log}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration returns the media duration in seconds via ffprobe.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, f.ProbeBin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w (stderr: %s)", path, err, stderr.String())
	}

	var probed probeOutput
	if err := json.Unmarshal(out.Bytes(), &probed); err != nil {
		return 0, fmt.Errorf("parse ffprobe output for %s: %w", path, err)
	}
	if probed.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe returned no duration for %s", path)
	}
	dur, err := strconv.ParseFloat(probed.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q for %s: %w", probed.Format.Duration, path, err)
	}
	return dur, nil
}

// ConcatMedia joins identically encoded files in order using the concat
// demuxer with stream copy, so segment boundaries stay sample-accurate.
// Used for both the per-segment audio merge and the segment clip concat.
func (f *FFmpeg) ConcatMedia(ctx context.Context, paths []string, output string) error {
	if len(paths) == 0 {
		return fmt.Errorf("concat: no input files")
	}

	listFile := output + ".list.txt"
	var lines []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		lines = append(lines, fmt.Sprintf("file '%s'", abs))
	}
	if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listFile)

	return f.run(ctx, "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		output,
	)
}

// RenderClip builds one segment clip per spec.
func (f *FFmpeg) RenderClip(ctx context.Context, spec ClipSpec) error {
	bgDur, err := f.Duration(ctx, spec.Background)
	if err != nil {
		return err
	}

	args := []string{"-y"}
	if bgDur > 0 && bgDur < spec.Duration {
		loops := int(spec.Duration/bgDur) + 1
		args = append(args, "-stream_loop", strconv.Itoa(loops))
	}
	args = append(args, "-i", spec.Background)
	for _, ov := range spec.Overlays {
		args = append(args, "-i", ov.Photo)
	}

	var filters []string
	filters = append(filters, fmt.Sprintf(
		"[0:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1,fps=%d,trim=duration=%.3f,setpts=PTS-STARTPTS[base]",
		spec.Width, spec.Height, spec.Width, spec.Height, spec.FPS, spec.Duration,
	))

	cur := "base"
	for i, ov := range spec.Overlays {
		window := ov.End - ov.Start
		frames := int(window * float64(spec.FPS))
		if frames < 1 {
			frames = 1
		}
		zoom := spec.KenBurnsZoom
		if zoom <= 1 {
			zoom = 1.1
		}
		zoomStep := (zoom - 1.0) / float64(frames)

		fade := spec.FadeSeconds
		if fade*2 > window {
			fade = window / 2
		}

		ovLabel := fmt.Sprintf("ov%d", i)
		// Supersample before zoompan to avoid subpixel jitter on the slow zoom.
		filters = append(filters, fmt.Sprintf(
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,"+
				"zoompan=z='min(zoom+%.6f,%.3f)':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=%d:fps=%d:s=%dx%d,"+
				"format=yuva420p,fade=t=in:st=0:d=%.3f:alpha=1,fade=t=out:st=%.3f:d=%.3f:alpha=1,"+
				"setpts=PTS-STARTPTS+%.3f/TB[%s]",
			i+1, spec.Width*2, spec.Height*2, spec.Width*2, spec.Height*2,
			zoomStep, zoom, frames, spec.FPS, spec.Width, spec.Height,
			fade, window-fade, fade,
			ov.Start, ovLabel,
		))

		outLabel := fmt.Sprintf("v%d", i)
		filters = append(filters, fmt.Sprintf(
			"[%s][%s]overlay=enable='between(t,%.3f,%.3f)'[%s]",
			cur, ovLabel, ov.Start, ov.End, outLabel,
		))
		cur = outLabel
	}

	args = append(args,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", "["+cur+"]",
		"-t", fmt.Sprintf("%.3f", spec.Duration),
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-an",
		spec.Output,
	)
	return f.run(ctx, args...)
}

// Mux attaches the voice track to the visual track, mixing in looped
// background music below the voice level and burning captions into the
// frames when requested. Output duration follows the shorter input so the
// video never outruns the voice.
func (f *FFmpeg) Mux(ctx context.Context, spec MuxSpec) error {
	args := []string{"-y", "-i", spec.Video, "-i", spec.Voice}
	if spec.Music != "" {
		args = append(args, "-stream_loop", "-1", "-i", spec.Music)
	}

	var filters []string
	videoMap := "0:v"
	if spec.Subtitles != "" {
		filters = append(filters, fmt.Sprintf("[0:v]subtitles='%s'[v]", escapeFilterPath(spec.Subtitles)))
		videoMap = "[v]"
	}

	audioMap := "1:a"
	if spec.Music != "" {
		vol := spec.MusicVolume
		if vol <= 0 {
			vol = 0.15
		}
		filters = append(filters, fmt.Sprintf(
			"[2:a]volume=%.3f[bgm];[1:a][bgm]amix=inputs=2:duration=shortest:normalize=0[a]", vol))
		audioMap = "[a]"
	}

	if len(filters) > 0 {
		args = append(args, "-filter_complex", strings.Join(filters, ";"))
	}
	args = append(args, "-map", videoMap, "-map", audioMap)

	if spec.Subtitles != "" {
		args = append(args, "-c:v", "libx264", "-preset", "fast", "-crf", "23", "-pix_fmt", "yuv420p")
	} else {
		args = append(args, "-c:v", "copy")
	}
	args = append(args,
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		spec.Output,
	)
	return f.run(ctx, args...)
}

func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	if f.Log != nil {
		f.Log.WithField("args", strings.Join(args, " ")).Debug("invoking ffmpeg")
	}
	cmd := exec.CommandContext(ctx, f.Bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w (stderr: %s)", err, tail(stderr.String(), 800))
	}
	return nil
}

// escapeFilterPath escapes characters the subtitles filter treats specially.
func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, `\`, `\\`)
	p = strings.ReplaceAll(p, `'`, `\'`)
	p = strings.ReplaceAll(p, `:`, `\:`)
	return p
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
