package subtitle

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"adreel/internal/models"
)

func seg(text string) models.Segment {
	return models.Segment{Text: text}
}

func timings(durs ...float64) []models.SegmentTiming {
	out := make([]models.SegmentTiming, len(durs))
	for i, d := range durs {
		out[i] = models.SegmentTiming{Index: i, Duration: d}
	}
	return out
}

func TestBuildCumulativeTiming(t *testing.T) {
	caps, err := Build(
		[]models.Segment{seg("one"), seg("two"), seg("three")},
		timings(2.5, 3.25, 1.0),
	)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(caps) != 3 {
		t.Fatalf("expected 3 captions, got %d", len(caps))
	}

	wantStarts := []float64{0, 2.5, 5.75}
	wantEnds := []float64{2.5, 5.75, 6.75}
	for i, c := range caps {
		if math.Abs(c.Start-wantStarts[i]) > 1e-9 || math.Abs(c.End-wantEnds[i]) > 1e-9 {
			t.Errorf("caption %d: got [%.3f, %.3f], want [%.3f, %.3f]", i, c.Start, c.End, wantStarts[i], wantEnds[i])
		}
		if c.Index != i+1 {
			t.Errorf("caption %d: index %d, want %d", i, c.Index, i+1)
		}
	}
}

// Captions must be strictly ordered and non-overlapping: consecutive
// captions are back-to-back or gapped, never inverted.
func TestBuildNonOverlapping(t *testing.T) {
	caps, err := Build(
		[]models.Segment{seg("a"), seg(""), seg("b"), seg("c")},
		timings(1.2, 0.9, 2.0, 1.5),
	)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for i := 0; i < len(caps)-1; i++ {
		if caps[i].End > caps[i+1].Start {
			t.Errorf("caption %d ends at %.3f after caption %d starts at %.3f", i, caps[i].End, i+1, caps[i+1].Start)
		}
	}
	for _, c := range caps {
		if c.End <= c.Start {
			t.Errorf("caption %d has non-positive span [%.3f, %.3f]", c.Index, c.Start, c.End)
		}
	}
}

// An empty-text segment is skipped outright: no caption, no index, no time.
// The next caption starts where the previous spoken one ended.
func TestBuildSkipsEmptySegments(t *testing.T) {
	caps, err := Build(
		[]models.Segment{seg("first"), seg("  "), seg("third")},
		timings(1.0, 2.0, 1.0),
	)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(caps) != 2 {
		t.Fatalf("expected 2 captions, got %d", len(caps))
	}
	if caps[0].Index != 1 || caps[1].Index != 2 {
		t.Errorf("caption indices not consecutive: %d, %d", caps[0].Index, caps[1].Index)
	}
	if math.Abs(caps[1].Start-1.0) > 1e-9 {
		t.Errorf("third segment caption starts at %.3f, want 1.0", caps[1].Start)
	}
	if math.Abs(caps[1].End-2.0) > 1e-9 {
		t.Errorf("third segment caption ends at %.3f, want 2.0", caps[1].End)
	}
}

func TestBuildMismatchedLengths(t *testing.T) {
	if _, err := Build([]models.Segment{seg("a")}, timings(1, 2)); err == nil {
		t.Fatal("expected error for mismatched list lengths")
	}
}

func TestWriteSRT(t *testing.T) {
	caps, err := Build([]models.Segment{seg("Hello there"), seg("Goodbye")}, timings(1.5, 62.25))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "captions.srt")
	if err := WriteSRT(caps, path); err != nil {
		t.Fatalf("WriteSRT failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read SRT: %v", err)
	}
	content := string(data)
	for _, want := range []string{
		"1\n00:00:00,000 --> 00:00:01,500\nHello there",
		"2\n00:00:01,500 --> 00:01:03,750\nGoodbye",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("SRT missing %q, got:\n%s", want, content)
		}
	}
}

func TestSRTTimestamp(t *testing.T) {
	cases := map[float64]string{
		0:       "00:00:00,000",
		1.5:     "00:00:01,500",
		61.001:  "00:01:01,001",
		3723.42: "01:02:03,420",
	}
	for sec, want := range cases {
		if got := srtTimestamp(sec); got != want {
			t.Errorf("srtTimestamp(%v) = %q, want %q", sec, got, want)
		}
	}
}
