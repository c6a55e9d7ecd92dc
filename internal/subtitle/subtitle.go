// Package subtitle converts segment texts and their measured durations into a
// burned-in caption track. Captions are strictly ordered and non-overlapping
// by construction: caption i starts where caption i-1 ended.
package subtitle

import (
	"fmt"
	"os"
	"strings"

	"adreel/internal/models"
)

// Caption is one timed caption line.
type Caption struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// Build derives the caption track from ordered segments and their timings.
// Empty-text segments are skipped entirely, consuming neither a caption index
// nor time. The only failure mode is mismatched list lengths.
func Build(segments []models.Segment, timings []models.SegmentTiming) ([]Caption, error) {
	if len(segments) != len(timings) {
		return nil, fmt.Errorf("subtitle: %d segments but %d timings", len(segments), len(timings))
	}

	captions := make([]Caption, 0, len(segments))
	var elapsed float64
	idx := 1
	for i, seg := range segments {
		d := timings[i].Duration
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		captions = append(captions, Caption{
			Index: idx,
			Start: elapsed,
			End:   elapsed + d,
			Text:  text,
		})
		elapsed += d
		idx++
	}
	return captions, nil
}

// WriteSRT renders the captions as an SRT file at path.
func WriteSRT(captions []Caption, path string) error {
	var sb strings.Builder
	for _, c := range captions {
		sb.WriteString(fmt.Sprintf("%d\n%s --> %s\n%s\n\n",
			c.Index, srtTimestamp(c.Start), srtTimestamp(c.End), c.Text))
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// srtTimestamp formats seconds as HH:MM:SS,mmm.
func srtTimestamp(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	ms := int(sec*1000 + 0.5)
	h := ms / 3600000
	ms -= h * 3600000
	m := ms / 60000
	ms -= m * 60000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
