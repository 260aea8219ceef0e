// Package config loads and validates vigil configuration from YAML.
//
// The loaded Config is immutable by convention: it is constructed once at
// startup, validated, and passed by pointer into component constructors.
// Nothing reads configuration through globals.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvSlackWebhook overrides notify.slack_webhook_url when set.
const EnvSlackWebhook = "VIGIL_SLACK_WEBHOOK"

// ErrInvalid is wrapped by all validation failures. Configuration errors are
// fatal at startup, before any crawling begins.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the top-level vigil configuration.
type Config struct {
	Crawl       CrawlConfig        `yaml:"crawl"`
	Thresholds  ThresholdConfig    `yaml:"thresholds"`
	Competitors []CompetitorConfig `yaml:"competitors"`
	Screenshots ScreenshotConfig   `yaml:"screenshots"`
	Notify      NotifyConfig       `yaml:"notify"`
	Keywords    []string           `yaml:"keywords"`
	Media       MediaConfig        `yaml:"media"`
	Storage     StorageConfig      `yaml:"storage"`
	Server      ServerConfig       `yaml:"server"`
}

// CrawlConfig bounds the per-site crawl.
type CrawlConfig struct {
	MaxPagesPerSite int           `yaml:"max_pages_per_site"`
	MaxDepth        int           `yaml:"max_depth"`
	RequestDelay    time.Duration `yaml:"request_delay"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	MaxTextLen      int           `yaml:"max_text_len"`
	UserAgent       string        `yaml:"user_agent"`
}

// ThresholdConfig holds the significance cutoffs, in percent [0,100].
// Pricing pages bypass the content threshold entirely.
type ThresholdConfig struct {
	ContentChangePercent float64 `yaml:"content_change_percent"`
	VisualChangePercent  float64 `yaml:"visual_change_percent"`
}

// CompetitorConfig describes one monitored site.
type CompetitorConfig struct {
	Name       string `yaml:"name"`
	Website    string `yaml:"website"`
	PricingURL string `yaml:"pricing_url"`
	NewsURL    string `yaml:"news_url"`
	Tier       string `yaml:"tier"`
}

// ScreenshotConfig controls headless capture.
type ScreenshotConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Dir             string        `yaml:"dir"`
	Width           int           `yaml:"width"`
	Height          int           `yaml:"height"`
	FullPage        bool          `yaml:"full_page"`
	PagesPerBrowser int           `yaml:"pages_per_browser"`
	Timeout         time.Duration `yaml:"timeout"`
}

// NotifyConfig controls Slack delivery.
type NotifyConfig struct {
	SlackWebhookURL string        `yaml:"slack_webhook_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
}

// MediaConfig controls the news-mention scanner.
type MediaConfig struct {
	Enabled bool        `yaml:"enabled"`
	Sites   []MediaSite `yaml:"sites"`
	Terms   []string    `yaml:"terms"`
}

// MediaSite is one news site to scan. Browser routes the fetch through the
// headless renderer for sites that block plain HTTP clients.
type MediaSite struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
	Browser  bool   `yaml:"browser"`
}

// StorageConfig locates the snapshot database.
type StorageConfig struct {
	Path          string `yaml:"path"`
	KeepSnapshots int    `yaml:"keep_snapshots"`
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads, defaults, and validates a YAML configuration file.
// Any validation failure wraps ErrInvalid and should abort startup.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes raw YAML bytes. Split from Load for tests.
func Parse(data []byte) (*Config, error) {
	// Fields where zero is a meaningful value are pre-seeded with -1 so an
	// absent key can be told apart from an explicit zero.
	cfg := Config{
		Crawl: CrawlConfig{
			MaxDepth:     -1,
			RequestDelay: -1,
		},
		Thresholds: ThresholdConfig{
			ContentChangePercent: -1,
			VisualChangePercent:  -1,
		},
		Screenshots: ScreenshotConfig{
			Enabled:  true,
			FullPage: true,
		},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Crawl.MaxPagesPerSite <= 0 {
		c.Crawl.MaxPagesPerSite = 50
	}
	if c.Crawl.MaxDepth == -1 {
		c.Crawl.MaxDepth = 2
	}
	if c.Crawl.RequestDelay == -1 {
		c.Crawl.RequestDelay = time.Second
	}
	if c.Crawl.Timeout <= 0 {
		c.Crawl.Timeout = 30 * time.Second
	}
	if c.Crawl.MaxBodyBytes <= 0 {
		c.Crawl.MaxBodyBytes = 10 << 20
	}
	if c.Crawl.MaxTextLen <= 0 {
		c.Crawl.MaxTextLen = 5000
	}
	if c.Crawl.UserAgent == "" {
		c.Crawl.UserAgent = "vigil/1.0 (+https://github.com/vigilhq/vigil)"
	}
	if c.Thresholds.ContentChangePercent == -1 {
		c.Thresholds.ContentChangePercent = 5
	}
	if c.Thresholds.VisualChangePercent == -1 {
		c.Thresholds.VisualChangePercent = 10
	}
	if c.Screenshots.Dir == "" {
		c.Screenshots.Dir = "data/screenshots"
	}
	if c.Screenshots.Width <= 0 {
		c.Screenshots.Width = 1920
	}
	if c.Screenshots.Height <= 0 {
		c.Screenshots.Height = 1080
	}
	if c.Screenshots.Timeout <= 0 {
		c.Screenshots.Timeout = 45 * time.Second
	}
	if c.Notify.SlackWebhookURL == "" {
		c.Notify.SlackWebhookURL = os.Getenv(EnvSlackWebhook)
	}
	if c.Notify.Timeout <= 0 {
		c.Notify.Timeout = 10 * time.Second
	}
	if c.Notify.MaxRetries <= 0 {
		c.Notify.MaxRetries = 3
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/vigil.db"
	}
	if c.Storage.KeepSnapshots <= 0 {
		c.Storage.KeepSnapshots = 10
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8732"
	}
}

// Validate checks the configuration for startup-fatal problems.
func (c *Config) Validate() error {
	if len(c.Competitors) == 0 {
		return fmt.Errorf("%w: no competitors configured", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Competitors))
	for i, comp := range c.Competitors {
		if strings.TrimSpace(comp.Name) == "" {
			return fmt.Errorf("%w: competitor %d has no name", ErrInvalid, i)
		}
		if seen[comp.Name] {
			return fmt.Errorf("%w: duplicate competitor %q", ErrInvalid, comp.Name)
		}
		seen[comp.Name] = true
		if err := checkHTTPURL(comp.Website); err != nil {
			return fmt.Errorf("%w: competitor %q website: %v", ErrInvalid, comp.Name, err)
		}
		if comp.PricingURL != "" {
			if err := checkHTTPURL(comp.PricingURL); err != nil {
				return fmt.Errorf("%w: competitor %q pricing_url: %v", ErrInvalid, comp.Name, err)
			}
		}
		if comp.NewsURL != "" {
			if err := checkHTTPURL(comp.NewsURL); err != nil {
				return fmt.Errorf("%w: competitor %q news_url: %v", ErrInvalid, comp.Name, err)
			}
		}
	}

	if c.Crawl.MaxPagesPerSite < 1 {
		return fmt.Errorf("%w: max_pages_per_site must be >= 1", ErrInvalid)
	}
	if c.Crawl.MaxDepth < 0 {
		return fmt.Errorf("%w: max_depth must be >= 0", ErrInvalid)
	}
	if c.Crawl.RequestDelay < 0 {
		return fmt.Errorf("%w: request_delay must be >= 0", ErrInvalid)
	}
	if t := c.Thresholds.ContentChangePercent; t < 0 || t > 100 {
		return fmt.Errorf("%w: content_change_percent must be in [0,100], got %v", ErrInvalid, t)
	}
	if t := c.Thresholds.VisualChangePercent; t < 0 || t > 100 {
		return fmt.Errorf("%w: visual_change_percent must be in [0,100], got %v", ErrInvalid, t)
	}
	if c.Storage.KeepSnapshots < 1 {
		return fmt.Errorf("%w: keep_snapshots must be >= 1", ErrInvalid)
	}

	if c.Media.Enabled {
		if len(c.Media.Sites) == 0 {
			return fmt.Errorf("%w: media enabled with no sites", ErrInvalid)
		}
		if len(c.Media.Terms) == 0 {
			return fmt.Errorf("%w: media enabled with no terms", ErrInvalid)
		}
		for i, site := range c.Media.Sites {
			if strings.TrimSpace(site.Name) == "" {
				return fmt.Errorf("%w: media site %d has no name", ErrInvalid, i)
			}
			if err := checkHTTPURL(site.URL); err != nil {
				return fmt.Errorf("%w: media site %q url: %v", ErrInvalid, site.Name, err)
			}
		}
	}
	return nil
}

// Competitor returns the configured competitor by name.
func (c *Config) Competitor(name string) (*CompetitorConfig, bool) {
	for i := range c.Competitors {
		if c.Competitors[i].Name == name {
			return &c.Competitors[i], true
		}
	}
	return nil, false
}

func checkHTTPURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("empty URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not http(s)", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL has no host")
	}
	return nil
}
