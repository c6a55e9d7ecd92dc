package models

import (
	"time"

	"adreel/internal/intent"
)

// Brief is the normalized campaign input for one render.
type Brief struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Context     string `json:"context"`
	Category    string `json:"category"`
	Tone        string `json:"tone"`
	Voice       string `json:"voice"`
}

// Segment is one narrative beat of the script. Ordering is significant and
// fixed at creation; segments are read-only after the segmenter produces them.
type Segment struct {
	Index        int           `json:"index"`
	Intent       intent.Intent `json:"intent"`
	Text         string        `json:"text"`
	OnScreenText string        `json:"on_screen_text,omitempty"`
}

// Script is the ordered segment list produced by the Script Segmenter.
type Script struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Segments    []Segment `json:"segments"`
}

// CampaignContext is the structured classification inferred from free text.
// It biases template selection and the stock-footage search.
type CampaignContext struct {
	Category string   `json:"category"`
	Brand    string   `json:"brand"`
	Offer    string   `json:"offer"`
	Audience string   `json:"audience"`
	Location string   `json:"location"`
	Keywords []string `json:"keywords"`
}

// SegmentTiming carries the measured speech duration for one segment.
// One entry per segment, positionally aligned with Script.Segments.
type SegmentTiming struct {
	Index    int     `json:"index"`
	Duration float64 `json:"duration_sec"`
}

// TotalDuration sums the per-segment durations.
func TotalDuration(timings []SegmentTiming) float64 {
	var total float64
	for _, t := range timings {
		total += t.Duration
	}
	return total
}

// VoiceTrack is the output of the Voice Synthesizer.
type VoiceTrack struct {
	MergedPath string          `json:"merged_path"`
	ClipPaths  []string        `json:"clip_paths"`
	Timings    []SegmentTiming `json:"timings"`
}

// MediaPlanEntry assigns background video and overlay photos to one segment.
// After planning completes every entry has a non-empty BackgroundVideoPath.
type MediaPlanEntry struct {
	Index               int           `json:"index"`
	Intent              intent.Intent `json:"intent"`
	BackgroundVideoPath string        `json:"background_video_path"`
	OverlayPhotoPaths   []string      `json:"overlay_photo_paths,omitempty"`
	OnScreenText        string        `json:"on_screen_text,omitempty"`
}

// Job is the registry record for one completed render. Immutable; owned
// exclusively by the Job Registry.
type Job struct {
	ID               string    `json:"id"`
	ArtifactLocation string    `json:"artifact_location"`
	CaptionLocation  string    `json:"caption_location,omitempty"`
	ScriptSnapshot   *Script   `json:"script_snapshot,omitempty"`
	Voice            string    `json:"voice"`
	Tone             string    `json:"tone"`
	Category         string    `json:"category"`
	DurationSeconds  float64   `json:"duration_seconds"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// DeductionOutcome reports the wallet deduction after a successful render.
type DeductionOutcome struct {
	Deducted  bool    `json:"deducted"`
	Amount    float64 `json:"amount"`
	Remaining float64 `json:"remaining"`
}

// RenderResult is the JSON-shaped job descriptor returned to the caller.
type RenderResult struct {
	JobID            string           `json:"job_id"`
	ArtifactLocation string           `json:"artifact_location"`
	CaptionLocation  string           `json:"caption_location,omitempty"`
	Voice            string           `json:"voice"`
	Tone             string           `json:"tone"`
	Category         string           `json:"category"`
	Context          *CampaignContext `json:"context,omitempty"`
	DurationSeconds  float64          `json:"duration_seconds"`
	Deduction        DeductionOutcome `json:"deduction"`
}
