package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PexelsClient queries the Pexels video search API for stock background
// footage. Results are cached per query with a TTL so concurrent segments
// and retried renders do not repeat identical searches.
type PexelsClient struct {
	APIKey string
	HTTP   *http.Client
	Log    *logrus.Logger

	baseURL string
	cache   *searchCache
}

// NewPexelsClient builds a stock-search client.
func NewPexelsClient(apiKey string, log *logrus.Logger) *PexelsClient {
	return &PexelsClient{
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Log:     log,
		baseURL: "https://api.pexels.com/videos/search",
		cache:   newSearchCache(time.Hour, time.Now),
	}
}

type cachedResult struct {
	url        string
	insertedAt time.Time
}

// searchCache memoizes query results. Eviction is a pure function of
// "now - insertedAt >= TTL", checked lazily on read.
type searchCache struct {
	mu      sync.Mutex
	entries map[string]cachedResult
	ttl     time.Duration
	now     func() time.Time
}

func newSearchCache(ttl time.Duration, now func() time.Time) *searchCache {
	return &searchCache{
		entries: make(map[string]cachedResult),
		ttl:     ttl,
		now:     now,
	}
}

func (c *searchCache) get(query string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[query]
	if !ok {
		return "", false
	}
	if c.now().Sub(entry.insertedAt) >= c.ttl {
		delete(c.entries, query)
		return "", false
	}
	return entry.url, true
}

func (c *searchCache) put(query, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[query] = cachedResult{url: url, insertedAt: c.now()}
}

type pexelsVideoFile struct {
	Quality string `json:"quality"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Link    string `json:"link"`
}

type pexelsVideo struct {
	ID         int               `json:"id"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	VideoFiles []pexelsVideoFile `json:"video_files"`
}

type pexelsSearchResponse struct {
	Videos []pexelsVideo `json:"videos"`
}

// Search returns the download URL of the best candidate for query: a
// portrait HD file when available, then any portrait file, then any file at
// all. An empty URL with nil error means the query matched nothing.
func (c *PexelsClient) Search(ctx context.Context, query string, perPage int) (string, error) {
	if perPage <= 0 {
		perPage = 10
	}
	if c.cache != nil {
		if url, ok := c.cache.get(query); ok {
			return url, nil
		}
	}

	u := fmt.Sprintf("%s?query=%s&orientation=portrait&size=medium&per_page=%s",
		c.baseURL, url.QueryEscape(query), strconv.Itoa(perPage))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("pexels request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("pexels returned %s: %s", resp.Status, string(body))
	}

	var parsed pexelsSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("parse pexels response: %w", err)
	}

	best := pickBestFile(parsed.Videos)
	if best == "" {
		c.Log.WithField("query", query).Warn("stock search returned no candidates")
	}
	// Empty results are cached too.
	if c.cache != nil {
		c.cache.put(query, best)
	}
	return best, nil
}

// pickBestFile prefers portrait HD, then any portrait, then any file.
func pickBestFile(videos []pexelsVideo) string {
	var anyPortrait, anyFile string
	for _, v := range videos {
		for _, f := range v.VideoFiles {
			if f.Link == "" {
				continue
			}
			portrait := f.Height > f.Width
			if portrait && f.Quality == "hd" {
				return f.Link
			}
			if portrait && anyPortrait == "" {
				anyPortrait = f.Link
			}
			if anyFile == "" {
				anyFile = f.Link
			}
		}
	}
	if anyPortrait != "" {
		return anyPortrait
	}
	return anyFile
}
