// Package voice turns ordered script segments into one narrated voice track
// with per-segment timing measured from the synthesized clips.
package voice

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"adreel/internal/apperr"
	"adreel/internal/models"
)

// SpeechClient is the slice of the synthesis-service client the synthesizer
// needs. *openai.Client satisfies it.
type SpeechClient interface {
	CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// AudioTool measures and merges audio clips. *ffmpeg.FFmpeg satisfies it.
type AudioTool interface {
	Duration(ctx context.Context, path string) (float64, error)
	ConcatMedia(ctx context.Context, paths []string, output string) error
}

// voiceTable resolves caller voice labels to synthesis-service voice ids.
// Unknown labels fall back to defaultVoice; resolution never fails.
var voiceTable = map[string]openai.SpeechVoice{
	"male":     openai.VoiceOnyx,
	"deep":     openai.VoiceOnyx,
	"female":   openai.VoiceNova,
	"bright":   openai.VoiceNova,
	"narrator": openai.VoiceFable,
	"warm":     openai.VoiceShimmer,
	"crisp":    openai.VoiceEcho,
	"neutral":  openai.VoiceAlloy,
}

const defaultVoice = openai.VoiceAlloy

// toneTable maps tone labels to short delivery instructions. Unrecognized
// tones map to no instruction and take the service default delivery.
var toneTable = map[string]string{
	"urgent":       "Speak at a faster pace with strong emphasis and a sense of urgency.",
	"friendly":     "Speak warmly and conversationally, like talking to a friend.",
	"professional": "Speak clearly and confidently with a polished, businesslike delivery.",
	"calm":         "Speak slowly and softly with a relaxed, reassuring delivery.",
	"excited":      "Speak with high energy and enthusiasm, building anticipation.",
	"serious":      "Speak in a measured, authoritative tone without embellishment.",
}

// Synthesizer converts segments to speech clips and merges them.
type Synthesizer struct {
	Client     SpeechClient
	Audio      AudioTool
	Log        *logrus.Logger
	MinSeconds float64
}

// Run synthesizes one clip per segment in order, measures each clip
// independently, and concatenates them losslessly into one voice track.
//
// The per-segment calls are sequential by design: clip files must remain
// positionally aligned with segments for the duration lookup, and the
// synthesis service does not guarantee ordering under concurrent calls.
// Any failed call aborts the whole operation; partial tracks are never kept.
func (s *Synthesizer) Run(ctx context.Context, segments []models.Segment, voiceLabel, tone, dir string) (*models.VoiceTrack, error) {
	if len(segments) == 0 {
		return nil, &apperr.VoiceSynthesisError{SegmentIndex: 0, Err: fmt.Errorf("no segments to synthesize")}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &apperr.VoiceSynthesisError{SegmentIndex: 0, Err: err}
	}

	voiceID := ResolveVoice(voiceLabel)
	instruction := ResolveTone(tone)

	track := &models.VoiceTrack{
		ClipPaths: make([]string, len(segments)),
		Timings:   make([]models.SegmentTiming, len(segments)),
	}

	for i, seg := range segments {
		clipPath := filepath.Join(dir, fmt.Sprintf("segment_%03d.mp3", i))
		if err := s.synthesizeClip(ctx, seg.Text, voiceID, instruction, clipPath); err != nil {
			return nil, &apperr.VoiceSynthesisError{SegmentIndex: i, Err: err}
		}
		track.ClipPaths[i] = clipPath
		s.Log.WithFields(logrus.Fields{"segment": i, "clip": clipPath}).Info("synthesized segment audio")
	}

	// Measure each clip independently rather than dividing the merged track,
	// so rounding error never propagates across segments.
	for i, clip := range track.ClipPaths {
		dur, err := s.Audio.Duration(ctx, clip)
		if err != nil {
			return nil, &apperr.VoiceSynthesisError{SegmentIndex: i, Err: err}
		}
		if dur < s.MinSeconds {
			dur = s.MinSeconds
		}
		track.Timings[i] = models.SegmentTiming{Index: i, Duration: dur}
	}

	merged := filepath.Join(dir, "voice_track.mp3")
	if err := s.Audio.ConcatMedia(ctx, track.ClipPaths, merged); err != nil {
		return nil, &apperr.VoiceSynthesisError{SegmentIndex: len(segments) - 1, Err: fmt.Errorf("merge voice track: %w", err)}
	}
	track.MergedPath = merged

	s.Log.WithFields(logrus.Fields{
		"segments":  len(segments),
		"total_sec": models.TotalDuration(track.Timings),
	}).Info("voice track ready")
	return track, nil
}

func (s *Synthesizer) synthesizeClip(ctx context.Context, text string, voiceID openai.SpeechVoice, instruction, outPath string) error {
	resp, err := s.Client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel("gpt-4o-mini-tts"),
		Input:          text,
		Voice:          voiceID,
		Instructions:   instruction,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return fmt.Errorf("speech request: %w", err)
	}
	defer resp.Close()

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp); err != nil {
		return fmt.Errorf("write speech clip: %w", err)
	}
	return nil
}

// ResolveVoice maps a caller voice label to a synthesis-service voice id.
func ResolveVoice(label string) openai.SpeechVoice {
	if v, ok := voiceTable[label]; ok {
		return v
	}
	return defaultVoice
}

// ResolveTone returns the delivery instruction for a tone label, empty when
// the tone is unrecognized.
func ResolveTone(tone string) string {
	return toneTable[tone]
}
