// Package media allocates background videos and overlay photos to script
// segments, preferring caller-supplied media in upload order and falling
// back to stock-footage search keyed by inferred topical keywords.
package media

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"adreel/internal/apperr"
	"adreel/internal/intent"
	"adreel/internal/models"
)

// StockSearcher finds a stock background video for a query, returning an
// empty URL when nothing matched.
type StockSearcher interface {
	Search(ctx context.Context, query string, perPage int) (string, error)
}

// Fetcher materializes a remote file locally.
type Fetcher interface {
	FetchURL(ctx context.Context, url, dest string) error
}

// PlanInput carries everything the planner needs for one render. Caller
// media is already materialized locally, in the caller's intended order.
type PlanInput struct {
	Segments     []models.Segment
	CallerVideos []string
	CallerPhotos []string

	Category    string
	Keywords    []string
	Title       string
	Description string
	ContextText string

	TempDir string
}

// Planner produces one MediaPlanEntry per segment.
type Planner struct {
	Stock StockSearcher
	Fetch Fetcher
	Log   *logrus.Logger
}

// maxQueryTerms bounds the composite stock-search query.
const maxQueryTerms = 6

// Run builds the media plan. Caller videos are walked in order onto the
// leading segments; every segment still missing a background is filled from
// stock search, and caller photos are distributed across segments. After Run
// returns nil, every entry has a non-empty background path.
func (p *Planner) Run(ctx context.Context, in PlanInput) ([]models.MediaPlanEntry, error) {
	if len(in.Segments) == 0 {
		return nil, fmt.Errorf("media planner: no segments")
	}

	entries := make([]models.MediaPlanEntry, len(in.Segments))
	for i, seg := range in.Segments {
		entries[i] = models.MediaPlanEntry{
			Index:        i,
			Intent:       seg.Intent,
			OnScreenText: seg.OnScreenText,
		}
	}

	// Sequential assignment: next unused caller video per segment until the
	// caller list is exhausted.
	for i := range entries {
		if i < len(in.CallerVideos) {
			entries[i].BackgroundVideoPath = in.CallerVideos[i]
		}
	}

	if err := p.fillFromStock(ctx, in, entries); err != nil {
		return nil, err
	}

	distributePhotos(entries, in.CallerPhotos)

	for i := range entries {
		if entries[i].BackgroundVideoPath == "" {
			return nil, &apperr.BackgroundMediaError{SegmentIndex: i, Err: fmt.Errorf("no background after planning")}
		}
	}
	return entries, nil
}

// fillFromStock resolves missing backgrounds concurrently; lookups are
// independent and results land at fixed indices, so ordering is preserved.
func (p *Planner) fillFromStock(ctx context.Context, in PlanInput, entries []models.MediaPlanEntry) error {
	var wg sync.WaitGroup
	errs := make([]error, len(entries))

	for i := range entries {
		if entries[i].BackgroundVideoPath != "" {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path, err := p.stockBackground(ctx, in, i)
			if err != nil {
				errs[i] = err
				return
			}
			entries[i].BackgroundVideoPath = path
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Planner) stockBackground(ctx context.Context, in PlanInput, segIdx int) (string, error) {
	query := buildQuery(in, in.Segments[segIdx])
	if query == "" {
		query = fallbackTerm(in)
	}

	url, err := p.Stock.Search(ctx, query, 10)
	if err != nil {
		return "", &apperr.BackgroundMediaError{SegmentIndex: segIdx, Query: query, Err: err}
	}
	if url == "" {
		// Single retry with one best-guess term; no other automatic retries
		// exist in the pipeline.
		fb := fallbackTerm(in)
		p.Log.WithFields(logrus.Fields{"segment": segIdx, "query": query, "fallback": fb}).
			Warn("stock search empty, retrying with fallback term")
		url, err = p.Stock.Search(ctx, fb, 10)
		if err != nil {
			return "", &apperr.BackgroundMediaError{SegmentIndex: segIdx, Query: fb, Err: err}
		}
		if url == "" {
			return "", &apperr.BackgroundMediaError{SegmentIndex: segIdx, Query: query, Err: fmt.Errorf("no stock results after fallback")}
		}
	}

	dest := filepath.Join(in.TempDir, fmt.Sprintf("stock_%03d.mp4", segIdx))
	if err := p.Fetch.FetchURL(ctx, url, dest); err != nil {
		return "", &apperr.BackgroundMediaError{SegmentIndex: segIdx, Query: query, Err: err}
	}
	return dest, nil
}

// buildQuery combines keyword sources in priority order: explicit inferred
// keywords, then campaign title, description, inferred context text, and the
// segment's own narration, until the query term budget is filled.
func buildQuery(in PlanInput, seg models.Segment) string {
	sources := [][]string{
		in.Keywords,
		ExtractKeywords(in.Title, 5),
		ExtractKeywords(in.Description, 5),
		ExtractKeywords(in.ContextText, 5),
		ExtractKeywords(seg.Text, 5),
	}

	seen := make(map[string]struct{})
	var terms []string
	for _, src := range sources {
		taken := 0
		for _, t := range src {
			if len(terms) >= maxQueryTerms || taken >= 4 {
				break
			}
			t = strings.ToLower(strings.TrimSpace(t))
			if t == "" {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			terms = append(terms, t)
			taken++
		}
		if len(terms) >= maxQueryTerms {
			break
		}
	}
	return strings.Join(terms, " ")
}

func fallbackTerm(in PlanInput) string {
	if in.Category != "" {
		return in.Category
	}
	return "business"
}

// photoCap is the most overlay photos a segment may hold.
func photoCap(it intent.Intent) int {
	if it == intent.Solution {
		return 3
	}
	return 2
}

// distributePhotos spreads caller photos across segments: the first photo is
// forced onto the first segment, the last photo onto the last segment, and
// the remainder round-robins across interior segments starting at index 1,
// wrapping back to index 1. Full buckets are skipped; photos that fit
// nowhere are dropped.
func distributePhotos(entries []models.MediaPlanEntry, photos []string) {
	n := len(entries)
	p := len(photos)
	if n == 0 || p == 0 {
		return
	}

	add := func(idx int, photo string) bool {
		if len(entries[idx].OverlayPhotoPaths) >= photoCap(entries[idx].Intent) {
			return false
		}
		entries[idx].OverlayPhotoPaths = append(entries[idx].OverlayPhotoPaths, photo)
		return true
	}

	if n == 1 {
		for _, photo := range photos {
			if !add(0, photo) {
				break
			}
		}
		return
	}

	add(0, photos[0])
	var middle []string
	if p >= 2 {
		add(n-1, photos[p-1])
		middle = photos[1 : p-1]
	}

	// Interior ring; with two segments there is no interior, so the ring
	// degenerates to the second segment.
	ringStart, ringEnd := 1, n-2
	if n == 2 {
		ringEnd = 1
	}

	idx := ringStart
	for _, photo := range middle {
		placed := false
		for tries := 0; tries <= ringEnd-ringStart; tries++ {
			if add(idx, photo) {
				placed = true
			}
			idx++
			if idx > ringEnd {
				idx = ringStart
			}
			if placed {
				break
			}
		}
		if !placed {
			// Every interior bucket is full; the rest cannot be placed.
			break
		}
	}
}
