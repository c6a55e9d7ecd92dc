// Package compose builds the final video from the media plan and segment
// timings: one time-accurate muted clip per segment, concatenated and muxed
// with the voice track, optional background music, and optional burned-in
// captions.
package compose

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"adreel/internal/apperr"
	"adreel/internal/config"
	"adreel/internal/ffmpeg"
	"adreel/internal/models"
)

// Engine is the narrow encoding-engine surface the composer drives. The
// concrete implementation shells out to ffmpeg; tests substitute a fake.
type Engine interface {
	RenderClip(ctx context.Context, spec ffmpeg.ClipSpec) error
	ConcatMedia(ctx context.Context, paths []string, output string) error
	Mux(ctx context.Context, spec ffmpeg.MuxSpec) error
}

// Input is everything one final assembly consumes. Plan and Timings are
// positionally aligned with the script segments.
type Input struct {
	Plan    []models.MediaPlanEntry
	Timings []models.SegmentTiming

	VoicePath    string
	MusicPath    string
	SubtitlePath string

	TempDir    string
	OutputName string
}

// Composer renders segment clips and assembles the final artifact.
type Composer struct {
	Engine Engine
	Log    *logrus.Logger
	Render config.RenderConfig
}

// Run builds every segment clip in order, concatenates them losslessly, and
// muxes in the audio. Clip builds are one-at-a-time within a render; any
// engine failure aborts with a CompositionError naming the stage.
func (c *Composer) Run(ctx context.Context, in Input) (string, error) {
	if len(in.Plan) != len(in.Timings) {
		return "", &apperr.CompositionError{Stage: "plan", Err: fmt.Errorf("%d plan entries but %d timings", len(in.Plan), len(in.Timings))}
	}
	if len(in.Plan) == 0 {
		return "", &apperr.CompositionError{Stage: "plan", Err: fmt.Errorf("empty media plan")}
	}

	clips := make([]string, len(in.Plan))
	for i, entry := range in.Plan {
		dur := in.Timings[i].Duration
		if dur < c.Render.MinSegmentSeconds {
			dur = c.Render.MinSegmentSeconds
		}

		spec := ffmpeg.ClipSpec{
			Background:   entry.BackgroundVideoPath,
			Duration:     dur,
			Width:        c.Render.Width,
			Height:       c.Render.Height,
			FPS:          c.Render.FPS,
			KenBurnsZoom: c.Render.KenBurnsZoom,
			FadeSeconds:  c.Render.FadeSeconds,
			Output:       filepath.Join(in.TempDir, fmt.Sprintf("clip_%03d.mp4", i)),
		}

		count := SelectOverlayCount(dur, len(entry.OverlayPhotoPaths), c.Render.ShortSegmentSeconds)
		for w, window := range SpotlightWindows(dur, count, c.Render) {
			spec.Overlays = append(spec.Overlays, ffmpeg.Overlay{
				Photo: entry.OverlayPhotoPaths[w],
				Start: window.Start,
				End:   window.End,
			})
		}

		if err := c.Engine.RenderClip(ctx, spec); err != nil {
			return "", &apperr.CompositionError{Stage: fmt.Sprintf("clip %d", i), Err: err}
		}
		clips[i] = spec.Output
		c.Log.WithFields(logrus.Fields{"segment": i, "duration": dur, "overlays": count}).Info("segment clip rendered")
	}

	visuals := filepath.Join(in.TempDir, "visuals.mp4")
	if err := c.Engine.ConcatMedia(ctx, clips, visuals); err != nil {
		return "", &apperr.CompositionError{Stage: "concat", Err: err}
	}

	outName := in.OutputName
	if outName == "" {
		outName = "final.mp4"
	}
	output := filepath.Join(in.TempDir, outName)
	err := c.Engine.Mux(ctx, ffmpeg.MuxSpec{
		Video:       visuals,
		Voice:       in.VoicePath,
		Music:       in.MusicPath,
		MusicVolume: c.Render.MusicVolume,
		Subtitles:   in.SubtitlePath,
		Output:      output,
	})
	if err != nil {
		return "", &apperr.CompositionError{Stage: "mux", Err: err}
	}

	c.Log.WithField("output", output).Info("final video assembled")
	return output, nil
}
