package voice

import (
	"context"
	"errors"
	"io"
	"math"
	"path/filepath"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"adreel/internal/apperr"
	"adreel/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeSpeech records every synthesis request and can fail at one call index.
type fakeSpeech struct {
	requests []openai.CreateSpeechRequest
	failAt   int
}

func newFakeSpeech() *fakeSpeech { return &fakeSpeech{failAt: -1} }

func (f *fakeSpeech) CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error) {
	call := len(f.requests)
	f.requests = append(f.requests, req)
	if call == f.failAt {
		return openai.RawResponse{}, errors.New("synthesis unavailable")
	}
	return openai.RawResponse{ReadCloser: io.NopCloser(strings.NewReader("mp3-bytes"))}, nil
}

// fakeAudio serves per-clip durations and records the merge call.
type fakeAudio struct {
	durations   []float64
	failProbeAt int
	failConcat  bool
	merged      []string
	mergeOut    string
}

func newFakeAudio(durations ...float64) *fakeAudio {
	return &fakeAudio{durations: durations, failProbeAt: -1}
}

func (f *fakeAudio) Duration(ctx context.Context, path string) (float64, error) {
	idx := clipIndex(path)
	if idx == f.failProbeAt {
		return 0, errors.New("probe failed")
	}
	return f.durations[idx], nil
}

func (f *fakeAudio) ConcatMedia(ctx context.Context, paths []string, output string) error {
	if f.failConcat {
		return errors.New("concat failed")
	}
	f.merged = append([]string(nil), paths...)
	f.mergeOut = output
	return nil
}

// clipIndex pulls the segment index out of a segment_%03d.mp3 path.
func clipIndex(path string) int {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	n := 0
	for i := 0; i < len(name); i++ {
		if name[i] >= '0' && name[i] <= '9' {
			n = n*10 + int(name[i]-'0')
		}
	}
	return n
}

func segs(texts ...string) []models.Segment {
	out := make([]models.Segment, len(texts))
	for i, txt := range texts {
		out[i] = models.Segment{Index: i, Text: txt}
	}
	return out
}

func TestRunSequentialAndAligned(t *testing.T) {
	speech := newFakeSpeech()
	audio := newFakeAudio(2.5, 3.0, 1.75)
	s := &Synthesizer{Client: speech, Audio: audio, Log: testLogger(), MinSeconds: 0.8}

	track, err := s.Run(context.Background(), segs("one", "two", "three"), "female", "friendly", t.TempDir())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(speech.requests) != 3 {
		t.Fatalf("expected 3 synthesis calls, got %d", len(speech.requests))
	}
	for i, want := range []string{"one", "two", "three"} {
		if speech.requests[i].Input != want {
			t.Errorf("call %d synthesized %q, want %q: calls must stay in segment order", i, speech.requests[i].Input, want)
		}
		if speech.requests[i].Voice != openai.VoiceNova {
			t.Errorf("call %d used voice %q, want nova", i, speech.requests[i].Voice)
		}
		if speech.requests[i].Instructions != ResolveTone("friendly") {
			t.Errorf("call %d instruction %q, want the friendly tone", i, speech.requests[i].Instructions)
		}
	}

	if len(track.Timings) != 3 {
		t.Fatalf("expected 3 timings, got %d", len(track.Timings))
	}
	wantDurs := []float64{2.5, 3.0, 1.75}
	for i, tm := range track.Timings {
		if tm.Index != i || math.Abs(tm.Duration-wantDurs[i]) > 1e-9 {
			t.Errorf("timing %d = %+v, want index %d duration %.2f", i, tm, i, wantDurs[i])
		}
	}
	if math.Abs(models.TotalDuration(track.Timings)-7.25) > 1e-9 {
		t.Errorf("total duration %.3f, want 7.25", models.TotalDuration(track.Timings))
	}

	if len(audio.merged) != 3 {
		t.Fatalf("merge received %d clips", len(audio.merged))
	}
	for i, p := range audio.merged {
		if !strings.HasSuffix(p, filepath.Base(track.ClipPaths[i])) {
			t.Errorf("merge order broken at %d: %q vs %q", i, p, track.ClipPaths[i])
		}
	}
	if track.MergedPath != audio.mergeOut {
		t.Errorf("MergedPath %q is not the merge output %q", track.MergedPath, audio.mergeOut)
	}
}

func TestRunWritesClipFiles(t *testing.T) {
	dir := t.TempDir()
	s := &Synthesizer{Client: newFakeSpeech(), Audio: newFakeAudio(1, 1), Log: testLogger(), MinSeconds: 0.8}

	track, err := s.Run(context.Background(), segs("a", "b"), "", "", dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for i, clip := range track.ClipPaths {
		want := filepath.Join(dir, "segment_00"+string(rune('0'+i))+".mp3")
		if clip != want {
			t.Errorf("clip %d at %q, want %q", i, clip, want)
		}
	}
}

func TestRunAppliesDurationFloor(t *testing.T) {
	audio := newFakeAudio(0.2, 1.5)
	s := &Synthesizer{Client: newFakeSpeech(), Audio: audio, Log: testLogger(), MinSeconds: 0.8}

	track, err := s.Run(context.Background(), segs("hi", "longer line"), "", "", t.TempDir())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if track.Timings[0].Duration != 0.8 {
		t.Errorf("sub-minimum clip reported %.2fs, want the 0.8 floor", track.Timings[0].Duration)
	}
	if track.Timings[1].Duration != 1.5 {
		t.Errorf("normal clip reported %.2fs, want 1.5", track.Timings[1].Duration)
	}
}

func TestRunFailureCarriesSegmentIndex(t *testing.T) {
	speech := newFakeSpeech()
	speech.failAt = 2
	s := &Synthesizer{Client: speech, Audio: newFakeAudio(1, 1, 1, 1), Log: testLogger(), MinSeconds: 0.8}

	_, err := s.Run(context.Background(), segs("a", "b", "c", "d"), "", "", t.TempDir())
	var synthErr *apperr.VoiceSynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected VoiceSynthesisError, got %v", err)
	}
	if synthErr.SegmentIndex != 2 {
		t.Errorf("error names segment %d, want 2", synthErr.SegmentIndex)
	}
	// The failing call aborts the run before later segments are attempted.
	if len(speech.requests) != 3 {
		t.Errorf("synthesis continued after failure: %d calls", len(speech.requests))
	}
}

func TestRunProbeFailure(t *testing.T) {
	audio := newFakeAudio(1, 1, 1)
	audio.failProbeAt = 1
	s := &Synthesizer{Client: newFakeSpeech(), Audio: audio, Log: testLogger(), MinSeconds: 0.8}

	_, err := s.Run(context.Background(), segs("a", "b", "c"), "", "", t.TempDir())
	var synthErr *apperr.VoiceSynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected VoiceSynthesisError, got %v", err)
	}
	if synthErr.SegmentIndex != 1 {
		t.Errorf("error names segment %d, want 1", synthErr.SegmentIndex)
	}
}

func TestRunMergeFailure(t *testing.T) {
	audio := newFakeAudio(1, 1)
	audio.failConcat = true
	s := &Synthesizer{Client: newFakeSpeech(), Audio: audio, Log: testLogger(), MinSeconds: 0.8}

	_, err := s.Run(context.Background(), segs("a", "b"), "", "", t.TempDir())
	var synthErr *apperr.VoiceSynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected VoiceSynthesisError, got %v", err)
	}
}

func TestRunEmptySegments(t *testing.T) {
	s := &Synthesizer{Client: newFakeSpeech(), Audio: newFakeAudio(), Log: testLogger(), MinSeconds: 0.8}
	if _, err := s.Run(context.Background(), nil, "", "", t.TempDir()); err == nil {
		t.Fatal("expected error for empty segment list")
	}
}

func TestResolveVoice(t *testing.T) {
	cases := map[string]openai.SpeechVoice{
		"male":     openai.VoiceOnyx,
		"deep":     openai.VoiceOnyx,
		"female":   openai.VoiceNova,
		"narrator": openai.VoiceFable,
		"warm":     openai.VoiceShimmer,
		"crisp":    openai.VoiceEcho,
		"neutral":  openai.VoiceAlloy,
		"":         openai.VoiceAlloy,
		"robotic":  openai.VoiceAlloy,
	}
	for label, want := range cases {
		if got := ResolveVoice(label); got != want {
			t.Errorf("ResolveVoice(%q) = %q, want %q", label, got, want)
		}
	}
}

func TestResolveTone(t *testing.T) {
	if ResolveTone("urgent") == "" {
		t.Error("known tone returned no instruction")
	}
	if ResolveTone("whimsical") != "" {
		t.Error("unknown tone should return empty instruction")
	}
}
