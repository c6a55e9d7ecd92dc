package compose

import "adreel/internal/config"

// Window is one photo's spotlight interval within a segment timeline.
type Window struct {
	Start float64
	End   float64
}

// SelectOverlayCount caps how many of a segment's photos are actually shown:
// at most two, and only one when the segment is too short to host two
// readable spotlights.
func SelectOverlayCount(segDur float64, photos int, shortSegSeconds float64) int {
	if photos <= 0 {
		return 0
	}
	if segDur < shortSegSeconds {
		return 1
	}
	if photos > 2 {
		return 2
	}
	return photos
}

// SpotlightWindows computes non-overlapping, back-to-back windows for count
// photos inside a segment of segDur seconds. A minimum per-photo duration and
// a maximum share of the segment bound the combined spotlight time, divided
// evenly among the photos. The combined window is anchored at the segment
// start (lead-in) or end (tail) per the configured anchor; the anchor is one
// fixed choice for the whole render, never changed mid-segment.
func SpotlightWindows(segDur float64, count int, rc config.RenderConfig) []Window {
	if count <= 0 || segDur <= 0 {
		return nil
	}

	per := segDur * rc.SpotlightMaxShare / float64(count)
	if per < rc.SpotlightMinSeconds {
		per = rc.SpotlightMinSeconds
	}
	total := per * float64(count)
	if total > segDur {
		total = segDur
		per = total / float64(count)
	}

	var offset float64
	if rc.SpotlightAnchor == config.SpotlightAnchorTail {
		offset = segDur - total
	}

	windows := make([]Window, count)
	for i := 0; i < count; i++ {
		windows[i] = Window{
			Start: offset + float64(i)*per,
			End:   offset + float64(i+1)*per,
		}
	}
	return windows
}
