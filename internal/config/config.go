package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the service needs at startup. Secrets and service
// endpoints come from the environment; render tunables come from an optional
// config.yaml and fall back to defaults.
type Config struct {
	SupabaseURL string
	SupabaseKey string
	OpenAIKey   string
	PexelsKey   string

	Storage StorageConfig `yaml:"storage"`
	Render  RenderConfig  `yaml:"render"`
	Jobs    JobsConfig    `yaml:"jobs"`
	Server  ServerConfig  `yaml:"server"`
}

type StorageConfig struct {
	MediaBucket  string `yaml:"media_bucket"`
	RenderBucket string `yaml:"render_bucket"`
	MusicPrefix  string `yaml:"music_prefix"`
	RenderPrefix string `yaml:"render_prefix"`
}

type RenderConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`

	MinSegmentSeconds   float64 `yaml:"min_segment_seconds"`
	ShortSegmentSeconds float64 `yaml:"short_segment_seconds"`

	// Spotlight windows for photo overlays. Anchor is "lead-in" or "tail";
	// it is a fixed design choice applied to every segment of a render.
	SpotlightAnchor     string  `yaml:"spotlight_anchor"`
	SpotlightMinSeconds float64 `yaml:"spotlight_min_seconds"`
	SpotlightMaxShare   float64 `yaml:"spotlight_max_share"`
	FadeSeconds         float64 `yaml:"fade_seconds"`

	KenBurnsZoom float64 `yaml:"ken_burns_zoom"`
	MusicVolume  float64 `yaml:"music_volume"`

	TempDir string `yaml:"temp_dir"`
}

type JobsConfig struct {
	TTLMinutes    int     `yaml:"ttl_minutes"`
	Workers       int     `yaml:"workers"`
	QueueSize     int     `yaml:"queue_size"`
	CostPerRender float64 `yaml:"cost_per_render"`
}

// TTL returns the registry eviction window.
func (j JobsConfig) TTL() time.Duration {
	return time.Duration(j.TTLMinutes) * time.Minute
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// SpotlightAnchorLeadIn places the combined photo window at the start of a
// segment; SpotlightAnchorTail anchors it at the end.
const (
	SpotlightAnchorLeadIn = "lead-in"
	SpotlightAnchorTail   = "tail"
)

// Load reads the environment (plus a local .env for development) and the
// optional yaml file at path. A missing yaml file is not an error; missing
// required secrets are.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	cfg.SupabaseURL = os.Getenv("SUPABASE_URL")
	cfg.SupabaseKey = os.Getenv("SUPABASE_SERVICE_KEY")
	cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	cfg.PexelsKey = os.Getenv("PEXELS_API_KEY")

	for name, v := range map[string]string{
		"SUPABASE_URL":         cfg.SupabaseURL,
		"SUPABASE_SERVICE_KEY": cfg.SupabaseKey,
		"OPENAI_API_KEY":       cfg.OpenAIKey,
		"PEXELS_API_KEY":       cfg.PexelsKey,
	} {
		if v == "" {
			return nil, fmt.Errorf("required environment variable %s is not set", name)
		}
	}

	if cfg.Render.SpotlightAnchor != SpotlightAnchorLeadIn && cfg.Render.SpotlightAnchor != SpotlightAnchorTail {
		return nil, fmt.Errorf("render.spotlight_anchor must be %q or %q, got %q",
			SpotlightAnchorLeadIn, SpotlightAnchorTail, cfg.Render.SpotlightAnchor)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Storage: StorageConfig{
			MediaBucket:  "campaign-media",
			RenderBucket: "renders",
			MusicPrefix:  "music",
			RenderPrefix: "renders",
		},
		Render: RenderConfig{
			Width:               1080,
			Height:              1920,
			FPS:                 30,
			MinSegmentSeconds:   0.8,
			ShortSegmentSeconds: 3.8,
			SpotlightAnchor:     SpotlightAnchorLeadIn,
			SpotlightMinSeconds: 1.6,
			SpotlightMaxShare:   0.6,
			FadeSeconds:         0.35,
			KenBurnsZoom:        1.12,
			MusicVolume:         0.15,
			TempDir:             os.TempDir(),
		},
		Jobs: JobsConfig{
			TTLMinutes:    60,
			Workers:       2,
			QueueSize:     16,
			CostPerRender: 25,
		},
		Server: ServerConfig{Port: "8080"},
	}
}
