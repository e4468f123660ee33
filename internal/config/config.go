// Package config holds bibrename's settings: defaults, the YAML file under
// the user's config directory, and environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/matsen/bibrename/internal/filename"
	"gopkg.in/yaml.v3"
)

// Config is the full set of tunables. Keys absent from the file keep
// their defaults.
type Config struct {
	// Registry access
	Mailto         string        `yaml:"mailto,omitempty"`
	CrossrefURL    string        `yaml:"crossref_url,omitempty"`
	OpenAlexURL    string        `yaml:"openalex_url,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`
	Retries        int           `yaml:"retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff,omitempty"`
	RateLimit      float64       `yaml:"rate_limit,omitempty"` // Requests per second per registry
	CachePath      string        `yaml:"cache_path,omitempty"`
	CacheTTL       time.Duration `yaml:"cache_ttl,omitempty"`

	// Naming
	Template  string `yaml:"template,omitempty"`  // Preset name
	Segments  string `yaml:"segments,omitempty"`  // Comma list; overrides the preset's segments
	Separator string `yaml:"separator,omitempty"` // Overrides the preset's separator

	// Processing
	MaxPages        int           `yaml:"max_pages,omitempty"`
	DownloadSpacing time.Duration `yaml:"download_spacing,omitempty"`

	// HTTP service
	ServerAddr     string `yaml:"server_addr,omitempty"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes,omitempty"`
}

// Defaults.
const (
	DefaultCrossrefURL     = "https://api.crossref.org"
	DefaultOpenAlexURL     = "https://api.openalex.org"
	DefaultRequestTimeout  = 15 * time.Second
	DefaultRetries         = 2
	DefaultRetryBackoff    = 600 * time.Millisecond
	DefaultRateLimit       = 5.0
	DefaultCachePath       = ":memory:"
	DefaultTemplate        = "default"
	DefaultMaxPages        = 2
	DefaultDownloadSpacing = 250 * time.Millisecond
	DefaultServerAddr      = ":8080"
	DefaultMaxUploadBytes  = 20 << 20
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		CrossrefURL:     DefaultCrossrefURL,
		OpenAlexURL:     DefaultOpenAlexURL,
		RequestTimeout:  DefaultRequestTimeout,
		Retries:         DefaultRetries,
		RetryBackoff:    DefaultRetryBackoff,
		RateLimit:       DefaultRateLimit,
		CachePath:       DefaultCachePath,
		Template:        DefaultTemplate,
		MaxPages:        DefaultMaxPages,
		DownloadSpacing: DefaultDownloadSpacing,
		ServerAddr:      DefaultServerAddr,
		MaxUploadBytes:  DefaultMaxUploadBytes,
	}
}

// NamingTemplate builds the filename template from Template, Segments and
// Separator.
func (c *Config) NamingTemplate() (filename.Template, error) {
	t, err := filename.Preset(c.Template)
	if err != nil {
		return filename.Template{}, err
	}
	if c.Segments != "" {
		segments, err := filename.ParseSegments(c.Segments)
		if err != nil {
			return filename.Template{}, fmt.Errorf("segments: %w", err)
		}
		t.Segments = segments
	}
	if c.Separator != "" {
		t.Separator = c.Separator
	}
	if err := t.Validate(); err != nil {
		return filename.Template{}, err
	}
	return t, nil
}

// Validate checks the configuration for values the pipeline cannot use.
func (c *Config) Validate() error {
	if _, err := c.NamingTemplate(); err != nil {
		return fmt.Errorf("invalid naming template: %w", err)
	}
	if c.CrossrefURL == "" || c.OpenAlexURL == "" {
		return fmt.Errorf("registry URLs must not be empty")
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max_pages must not be negative: %d", c.MaxPages)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative: %d", c.Retries)
	}
	if c.RequestTimeout < 0 || c.RetryBackoff < 0 || c.DownloadSpacing < 0 || c.CacheTTL < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive: %d", c.MaxUploadBytes)
	}
	return nil
}

// Save writes the configuration as YAML to path, creating its directory.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
