// Package storage adapts Supabase object storage for the pipeline: caller
// media downloads, background-music lookup under a prefix, and final
// artifact uploads.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	storage_go "github.com/supabase-community/storage-go"
	supa "github.com/supabase-community/supabase-go"

	"adreel/internal/apperr"
	"adreel/internal/config"
)

// Supabase is the object-store client used by renders.
type Supabase struct {
	client *supa.Client
	http   *http.Client
	log    *logrus.Logger
	cfg    config.StorageConfig
}

// NewSupabase connects to the project's Supabase storage.
func NewSupabase(cfg *config.Config, log *logrus.Logger) (*Supabase, error) {
	client, err := supa.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, nil)
	if err != nil {
		return nil, fmt.Errorf("init supabase client: %w", err)
	}
	return &Supabase{
		client: client,
		http:   &http.Client{Timeout: 2 * time.Minute},
		log:    log,
		cfg:    cfg.Storage,
	}, nil
}

// Download materializes a caller-supplied media object at dest.
func (s *Supabase) Download(ctx context.Context, key, dest string) error {
	data, err := s.client.Storage.DownloadFile(s.cfg.MediaBucket, key)
	if err != nil {
		return &apperr.StorageError{Op: "download", Key: key, Err: err}
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return &apperr.StorageError{Op: "download", Key: key, Err: err}
	}
	return nil
}

// MusicForTone fetches a background-music asset matching the tone from the
// music prefix, falling back to the first available track. An empty path
// with nil error means no music exists.
func (s *Supabase) MusicForTone(ctx context.Context, tone, destDir string) (string, error) {
	files, err := s.client.Storage.ListFiles(s.cfg.MediaBucket, s.cfg.MusicPrefix, storage_go.FileSearchOptions{Limit: 100})
	if err != nil {
		return "", &apperr.StorageError{Op: "list", Key: s.cfg.MusicPrefix, Err: err}
	}
	if len(files) == 0 {
		return "", nil
	}

	chosen := files[0].Name
	for _, f := range files {
		if tone != "" && strings.HasPrefix(strings.ToLower(f.Name), strings.ToLower(tone)) {
			chosen = f.Name
			break
		}
	}

	key := s.cfg.MusicPrefix + "/" + chosen
	dest := filepath.Join(destDir, "music"+filepath.Ext(chosen))
	if err := s.Download(ctx, key, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// Upload stores a local file under the render prefix and returns its
// retrievable location.
func (s *Supabase) Upload(ctx context.Context, localPath, key, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", &apperr.StorageError{Op: "upload", Key: key, Err: err}
	}
	defer f.Close()

	fullKey := s.cfg.RenderPrefix + "/" + key
	_, err = s.client.Storage.UploadFile(s.cfg.RenderBucket, fullKey, f, storage_go.FileOptions{ContentType: &contentType})
	if err != nil {
		return "", &apperr.StorageError{Op: "upload", Key: fullKey, Err: err}
	}

	loc := s.client.Storage.GetPublicUrl(s.cfg.RenderBucket, fullKey).SignedURL
	s.log.WithFields(logrus.Fields{"key": fullKey, "location": loc}).Info("artifact uploaded")
	return loc, nil
}

// FetchURL streams a remote file (stock footage, caller media by URL) to
// dest.
func (s *Supabase) FetchURL(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &apperr.StorageError{Op: "fetch", Key: url, Err: err}
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return &apperr.StorageError{Op: "fetch", Key: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &apperr.StorageError{Op: "fetch", Key: url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	f, err := os.Create(dest)
	if err != nil {
		return &apperr.StorageError{Op: "fetch", Key: url, Err: err}
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return &apperr.StorageError{Op: "fetch", Key: url, Err: err}
	}
	return nil
}
