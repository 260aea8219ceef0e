package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/vigilhq/vigil/idgen"
)

// Config configures the Chrome renderer.
type Config struct {
	// Dir is the root directory for stored screenshots. Refs returned by
	// Screenshot are relative to it.
	Dir string

	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Viewport size. Default: 1920x1080.
	Width  int
	Height int

	// FullPage captures the entire scroll height instead of just the
	// viewport.
	FullPage bool

	// PagesPerBrowser caps how many captures one Chrome process serves
	// before it is recycled. Default: 20.
	PagesPerBrowser int

	// NavigateTimeout bounds navigation plus the load wait. Default: 30s.
	NavigateTimeout time.Duration

	// FileID names screenshot files. Default: timestamped nano ID, so
	// refs sort chronologically.
	FileID idgen.Generator

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Dir == "" {
		c.Dir = "screenshots"
	}
	if c.Width <= 0 {
		c.Width = 1920
	}
	if c.Height <= 0 {
		c.Height = 1080
	}
	if c.PagesPerBrowser <= 0 {
		c.PagesPerBrowser = 20
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.FileID == nil {
		c.FileID = idgen.Timestamped(idgen.NanoID(6))
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Chrome captures PNG screenshots with a headless browser.
type Chrome struct {
	cfg Config

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	served  int
}

// NewChrome creates a Chrome renderer. The browser launches lazily on the
// first capture; construction never touches Chrome.
func NewChrome(cfg Config) *Chrome {
	cfg.defaults()
	return &Chrome{cfg: cfg}
}

// Screenshot navigates to pageURL, captures a PNG and stores it under
// Dir/<competitor>/. The returned ref is relative to Dir.
func (c *Chrome) Screenshot(ctx context.Context, competitor, pageURL string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	page, err := c.openPage(ctx, pageURL)
	if err != nil {
		return "", err
	}
	defer page.Close()

	data, err := page.Screenshot(c.cfg.FullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return "", fmt.Errorf("render: capture %s: %w", pageURL, err)
	}

	ref := filepath.Join(slug(competitor), c.cfg.FileID()+".png")
	if err := writeAtomic(filepath.Join(c.cfg.Dir, ref), data); err != nil {
		return "", err
	}
	return ref, nil
}

// HTML navigates to pageURL and returns the rendered document. Used for
// sites whose article lists only exist after scripts run.
func (c *Chrome) HTML(ctx context.Context, pageURL string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	page, err := c.openPage(ctx, pageURL)
	if err != nil {
		return "", err
	}
	defer page.Close()

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("render: read dom %s: %w", pageURL, err)
	}
	return html, nil
}

// Close shuts the browser down. Safe to call without a prior capture.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

// openPage hands back a stealth page already navigated and sized. Caller
// holds c.mu and owns the page.
func (c *Chrome) openPage(ctx context.Context, pageURL string) (*rod.Page, error) {
	b, err := c.ensureBrowser()
	if err != nil {
		return nil, err
	}
	c.served++

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("render: create page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             c.cfg.Width,
		Height:            c.cfg.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("render: set viewport: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, c.cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("render: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		c.cfg.Logger.Warn("render: wait load timed out", "url", pageURL, "error", err)
	}
	return page, nil
}

func (c *Chrome) ensureBrowser() (*rod.Browser, error) {
	if c.browser != nil && c.served < c.cfg.PagesPerBrowser {
		return c.browser, nil
	}
	if c.browser != nil {
		c.cfg.Logger.Info("render: recycling browser", "served", c.served)
		c.closeLocked()
	}

	wsURL := c.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("render: launch chrome: %w", err)
		}
		wsURL = u
		c.lnch = l
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("render: connect chrome: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		c.cfg.Logger.Warn("render: ignore cert errors failed", "error", err)
	}

	c.browser = b
	c.served = 0
	c.cfg.Logger.Info("render: browser ready", "remote", c.cfg.RemoteURL != "")
	return b, nil
}

func (c *Chrome) closeLocked() {
	if c.browser != nil {
		c.browser.Close()
		c.browser = nil
	}
	if c.lnch != nil {
		c.lnch.Cleanup()
		c.lnch = nil
	}
	c.served = 0
}

// slug folds a competitor name into a safe directory name.
func slug(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	s := strings.TrimRight(b.String(), "-")
	if s == "" {
		return "site"
	}
	return s
}

// writeAtomic writes via a sibling .tmp then renames, so watchers of the
// screenshot directory never observe partial files.
func writeAtomic(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("render: mkdir %s: %w", filepath.Dir(target), err)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("render: write tmp: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("render: rename: %w", err)
	}
	return nil
}
