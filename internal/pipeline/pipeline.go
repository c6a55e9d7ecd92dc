// Package pipeline orchestrates one render end to end: wallet pre-flight,
// script segmentation, voice synthesis and media planning in parallel,
// composition, optional captions, upload, wallet deduction, and registry
// entry. All intermediate files live in a per-render temp directory removed
// on every exit path.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"adreel/internal/apperr"
	"adreel/internal/compose"
	"adreel/internal/config"
	"adreel/internal/intent"
	"adreel/internal/media"
	"adreel/internal/models"
	"adreel/internal/registry"
	"adreel/internal/subtitle"
)

// Segmenter produces the script and the inferred campaign context.
type Segmenter interface {
	Run(ctx context.Context, brief models.Brief) (*models.Script, *models.CampaignContext, error)
	InferContext(ctx context.Context, text string) (*models.CampaignContext, error)
}

// VoiceSynthesizer produces the voice track for ordered segments.
type VoiceSynthesizer interface {
	Run(ctx context.Context, segments []models.Segment, voiceLabel, tone, dir string) (*models.VoiceTrack, error)
}

// MediaPlanner produces one plan entry per segment.
type MediaPlanner interface {
	Run(ctx context.Context, in media.PlanInput) ([]models.MediaPlanEntry, error)
}

// Composer renders the final video from plan, timings, and audio.
type Composer interface {
	Run(ctx context.Context, in compose.Input) (string, error)
}

// ObjectStore is the storage surface a render touches.
type ObjectStore interface {
	Download(ctx context.Context, key, dest string) error
	MusicForTone(ctx context.Context, tone, destDir string) (string, error)
	Upload(ctx context.Context, localPath, key, contentType string) (string, error)
	FetchURL(ctx context.Context, url, dest string) error
}

// Ledger is the wallet surface: a read-only pre-flight check and one atomic
// deduction after success.
type Ledger interface {
	CheckBalance(ctx context.Context, accountID string, cost float64) error
	Deduct(ctx context.Context, accountID string, amount float64) (models.DeductionOutcome, error)
}

// SegmentInput is a caller-supplied segment bypassing script generation.
type SegmentInput struct {
	Intent       string `json:"intent"`
	Text         string `json:"text"`
	OnScreenText string `json:"on_screen_text"`
}

// Request is one render request.
type Request struct {
	AccountID string

	Title       string
	Description string
	Context     string
	Category    string
	Tone        string
	Voice       string

	Segments []SegmentInput

	VideoKeys []string
	PhotoKeys []string

	WithMusic    bool
	WithCaptions bool
}

// Pipeline wires the render stages together. Each render's data flows
// through fresh, request-scoped structures; the registry is the only state
// shared across renders.
type Pipeline struct {
	Log      *logrus.Logger
	Cfg      *config.Config
	Script   Segmenter
	Voice    VoiceSynthesizer
	Planner  MediaPlanner
	Composer Composer
	Store    ObjectStore
	Ledger   Ledger
	Registry *registry.Registry
}

// Render executes one request. On success the artifact is uploaded, the
// wallet deducted, and a Job registered; on any failure no Job exists, no
// partial artifact stays addressable, and the temp directory is removed.
func (p *Pipeline) Render(ctx context.Context, req Request) (*models.RenderResult, error) {
	cost := p.Cfg.Jobs.CostPerRender

	// Pre-flight balance check comes before any expensive service call.
	if err := p.Ledger.CheckBalance(ctx, req.AccountID, cost); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	dir := filepath.Join(p.Cfg.Render.TempDir, "adreel-"+runID[:8])
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create render dir: %w", err)
	}
	defer os.RemoveAll(dir)

	log := p.Log.WithField("run_id", runID[:8])

	script, inferred, err := p.resolveScript(ctx, req)
	if err != nil {
		return nil, err
	}
	log.WithField("segments", len(script.Segments)).Info("script ready")

	category := req.Category
	if category == "" && inferred != nil {
		category = inferred.Category
	}

	videos, photos, err := p.fetchCallerMedia(ctx, req, dir)
	if err != nil {
		return nil, err
	}

	// Voice synthesis and media planning are independent; run them in
	// parallel and join before composition.
	var (
		wg       sync.WaitGroup
		track    *models.VoiceTrack
		plan     []models.MediaPlanEntry
		voiceErr error
		planErr  error
	)
	planIn := media.PlanInput{
		Segments:     script.Segments,
		CallerVideos: videos,
		CallerPhotos: photos,
		Category:     category,
		Title:        req.Title,
		Description:  req.Description,
		ContextText:  req.Context,
		TempDir:      dir,
	}
	if inferred != nil {
		planIn.Keywords = inferred.Keywords
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		track, voiceErr = p.Voice.Run(ctx, script.Segments, req.Voice, req.Tone, filepath.Join(dir, "audio"))
	}()
	go func() {
		defer wg.Done()
		plan, planErr = p.Planner.Run(ctx, planIn)
	}()
	wg.Wait()

	if voiceErr != nil {
		return nil, voiceErr
	}
	if planErr != nil {
		return nil, planErr
	}

	composeIn := compose.Input{
		Plan:      plan,
		Timings:   track.Timings,
		VoicePath: track.MergedPath,
		TempDir:   dir,
	}

	if req.WithMusic {
		music, err := p.Store.MusicForTone(ctx, req.Tone, dir)
		if err != nil {
			return nil, err
		}
		composeIn.MusicPath = music
	}

	if req.WithCaptions {
		captions, err := subtitle.Build(script.Segments, track.Timings)
		if err != nil {
			return nil, err
		}
		srtPath := filepath.Join(dir, "captions.srt")
		if err := subtitle.WriteSRT(captions, srtPath); err != nil {
			return nil, err
		}
		composeIn.SubtitlePath = srtPath
	}

	finalPath, err := p.Composer.Run(ctx, composeIn)
	if err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	artifactLoc, err := p.Store.Upload(ctx, finalPath, jobID+".mp4", "video/mp4")
	if err != nil {
		return nil, err
	}

	var captionLoc string
	if composeIn.SubtitlePath != "" {
		captionLoc, err = p.Store.Upload(ctx, composeIn.SubtitlePath, jobID+".srt", "application/x-subrip")
		if err != nil {
			return nil, err
		}
	}

	// Deduction happens only after a fully successful render and upload.
	outcome, err := p.Ledger.Deduct(ctx, req.AccountID, cost)
	if err != nil {
		return nil, err
	}

	total := models.TotalDuration(track.Timings)
	job := models.Job{
		ID:               jobID,
		ArtifactLocation: artifactLoc,
		CaptionLocation:  captionLoc,
		ScriptSnapshot:   script,
		Voice:            req.Voice,
		Tone:             req.Tone,
		Category:         category,
		DurationSeconds:  total,
	}
	// The descriptor serializes the stored job so it carries the registry's
	// lifetime stamps.
	stored := p.Registry.Register(job)
	p.persistDescriptor(ctx, stored, dir)

	log.WithFields(logrus.Fields{"job_id": jobID, "duration": total}).Info("render complete")
	return &models.RenderResult{
		JobID:            jobID,
		ArtifactLocation: artifactLoc,
		CaptionLocation:  captionLoc,
		Voice:            req.Voice,
		Tone:             req.Tone,
		Category:         category,
		Context:          inferred,
		DurationSeconds:  total,
		Deduction:        outcome,
	}, nil
}

// resolveScript either adopts the caller-supplied segments or generates the
// script from the brief. Caller segments still get intent normalization,
// trimming, and the empty-segment drop.
func (p *Pipeline) resolveScript(ctx context.Context, req Request) (*models.Script, *models.CampaignContext, error) {
	brief := models.Brief{
		Title:       req.Title,
		Description: req.Description,
		Context:     req.Context,
		Category:    req.Category,
		Tone:        req.Tone,
		Voice:       req.Voice,
	}

	if len(req.Segments) == 0 {
		return p.Script.Run(ctx, brief)
	}

	script := &models.Script{Title: req.Title, Description: req.Description}
	for _, in := range req.Segments {
		text := strings.TrimSpace(in.Text)
		if text == "" {
			continue
		}
		script.Segments = append(script.Segments, models.Segment{
			Index:        len(script.Segments),
			Intent:       intent.Normalize(in.Intent),
			Text:         text,
			OnScreenText: strings.TrimSpace(in.OnScreenText),
		})
	}
	if len(script.Segments) == 0 {
		return nil, nil, &apperr.ScriptGenerationError{Reason: "caller supplied only empty segments"}
	}

	// Context inference still helps stock search when the caller gave free
	// text or no category; an explicit category with no free text skips it.
	var inferred *models.CampaignContext
	if req.Category == "" || strings.TrimSpace(req.Context) != "" {
		text := req.Context
		if strings.TrimSpace(text) == "" {
			text = req.Title + "\n" + req.Description
		}
		cc, err := p.Script.InferContext(ctx, text)
		if err != nil {
			p.Log.WithError(err).Warn("context inference failed for caller script")
		} else {
			inferred = cc
		}
	}
	return script, inferred, nil
}

// persistDescriptor uploads the job metadata as JSON beside the artifact.
// Best effort: the render already succeeded, so a descriptor failure is
// logged, not surfaced.
func (p *Pipeline) persistDescriptor(ctx context.Context, job models.Job, dir string) {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		p.Log.WithError(err).Warn("marshal job descriptor")
		return
	}
	path := filepath.Join(dir, job.ID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		p.Log.WithError(err).Warn("write job descriptor")
		return
	}
	if _, err := p.Store.Upload(ctx, path, job.ID+".json", "application/json"); err != nil {
		p.Log.WithError(err).Warn("upload job descriptor")
	}
}

// fetchCallerMedia materializes caller media in upload order. Keys may be
// storage keys or full URLs.
func (p *Pipeline) fetchCallerMedia(ctx context.Context, req Request, dir string) (videos, photos []string, err error) {
	fetch := func(key, dest string) error {
		if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
			return p.Store.FetchURL(ctx, key, dest)
		}
		return p.Store.Download(ctx, key, dest)
	}

	for i, key := range req.VideoKeys {
		dest := filepath.Join(dir, fmt.Sprintf("caller_video_%02d%s", i, extOr(key, ".mp4")))
		if err := fetch(key, dest); err != nil {
			return nil, nil, err
		}
		videos = append(videos, dest)
	}
	for i, key := range req.PhotoKeys {
		dest := filepath.Join(dir, fmt.Sprintf("caller_photo_%02d%s", i, extOr(key, ".jpg")))
		if err := fetch(key, dest); err != nil {
			return nil, nil, err
		}
		photos = append(photos, dest)
	}
	return videos, photos, nil
}

func extOr(key, fallback string) string {
	if ext := filepath.Ext(key); ext != "" && len(ext) <= 5 {
		return ext
	}
	return fallback
}
