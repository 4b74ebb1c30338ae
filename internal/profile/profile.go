// Package profile loads YAML capture profiles: per-site knobs the CLI
// applies on top of flag and environment defaults.
package profile

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"pagevault/capture"
)

// Profile mirrors one YAML profile file.
type Profile struct {
	OutputDir     string            `yaml:"output_dir"`
	NoStoring     bool              `yaml:"no_storing"`
	EmbedDataURLs *bool             `yaml:"embed_data_urls"`
	Crop          string            `yaml:"crop"`
	TweetID       string            `yaml:"tweet_id"`
	UserAgent     string            `yaml:"user_agent"`
	Headers       map[string]string `yaml:"headers"`
	WaitSelector  string            `yaml:"wait_selector"`
	WaitAfterMS   int               `yaml:"wait_after_load_ms"`
	TimeoutMS     int               `yaml:"timeout_ms"`
	MaxImageDim   int               `yaml:"max_image_dim"`
}

// Load reads and parses a profile file.
func Load(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return &p, nil
}

// Options projects the profile onto capture options, starting from the
// environment defaults.
func (p *Profile) Options() capture.Options {
	opts := capture.DefaultOptions()
	if p.NoStoring {
		opts.NoStoring = true
	}
	if p.EmbedDataURLs != nil {
		opts.EmbedDataURLs = *p.EmbedDataURLs
	}
	if p.Crop != "" {
		opts.CropSelector = p.Crop
	}
	if p.TweetID != "" {
		opts.TweetID = p.TweetID
	}
	return opts
}

// Timeout returns the configured page-load timeout.
func (p *Profile) Timeout() time.Duration {
	if p.TimeoutMS <= 0 {
		return 0
	}
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

// WaitAfterLoad returns the configured post-load settle delay.
func (p *Profile) WaitAfterLoad() time.Duration {
	if p.WaitAfterMS <= 0 {
		return 0
	}
	return time.Duration(p.WaitAfterMS) * time.Millisecond
}
