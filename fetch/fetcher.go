// Package fetch retrieves competitor pages over HTTP and reduces them to the
// pieces the crawler records: normalized visible text, a stable content hash,
// outbound links, and a sanitized markdown rendition.
//
// A fixed politeness delay is enforced before every request, including the
// first. Failures are returned as errors and carry the HTTP status where one
// was received; callers decide whether a failed fetch is fatal.
package fetch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// Result contains the outcome of one page fetch.
type Result struct {
	// URL is the final URL after redirects; links resolve against it.
	URL        string
	StatusCode int
	// Text is the normalized visible text, truncated to MaxTextLen runes.
	Text string
	// Hash is the SHA-256 hex of Text. Deterministic given identical text.
	Hash string
	// Markdown is a sanitized markdown rendition of the page, truncated to
	// MaxTextLen runes. Empty when conversion fails or the body is not HTML.
	Markdown string
	// Links are the absolute outbound URLs discovered on the page, in
	// document order, deduplicated. Domain filtering happens in the crawler.
	Links     []string
	FetchedAt time.Time
}

// Config configures the fetcher.
type Config struct {
	// Delay is the politeness pause enforced before each request. Default: 1s.
	// Zero disables the pause.
	Delay time.Duration
	// Timeout is the per-request HTTP timeout. Default: 30s.
	Timeout time.Duration
	// MaxBytes caps the response body read. Default: 10MB.
	MaxBytes int64
	// MaxTextLen caps extracted text and markdown, in runes. Default: 5000.
	MaxTextLen int
	// UserAgent sent with requests.
	UserAgent string
	// Validator vets URLs before the initial request and on every redirect.
	// Default: ValidateURL (refuses private and loopback addresses).
	Validator func(string) error
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.MaxTextLen <= 0 {
		c.MaxTextLen = 5000
	}
	if c.UserAgent == "" {
		c.UserAgent = "vigil/1.0"
	}
	if c.Validator == nil {
		c.Validator = ValidateURL
	}
}

// Fetcher performs rate-limited page fetches.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	config  Config
}

// New creates a Fetcher. Redirects are capped at 5 and each redirect target
// is re-validated before it is followed.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.Validator

	var limiter *rate.Limiter
	if cfg.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Delay), 1)
		// Spend the initial token so the very first fetch waits too.
		limiter.Allow()
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		limiter: limiter,
		config:  cfg,
	}
}

// Fetch retrieves one page. Non-2xx responses return an error alongside a
// Result carrying the status code. Network and timeout errors return a nil
// Result. The politeness delay blocks here; cancelling ctx interrupts it.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	if err := f.config.Validator(rawURL); err != nil {
		return nil, fmt.Errorf("url blocked: %w", err)
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("politeness wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Result{URL: resp.Request.URL.String(), StatusCode: resp.StatusCode},
			fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	finalURL := resp.Request.URL
	res := &Result{
		URL:        finalURL.String(),
		StatusCode: resp.StatusCode,
		FetchedAt:  time.Now().UTC(),
	}

	if isHTML(resp.Header.Get("Content-Type")) {
		root, err := html.Parse(strings.NewReader(string(body)))
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}
		res.Text = visibleText(root, f.config.MaxTextLen)
		res.Links = extractLinks(root, finalURL)
		res.Markdown = toMarkdown(string(body), finalURL.String(), f.config.MaxTextLen)
	}

	res.Hash = hashText(res.Text)
	return res, nil
}

// hashText returns the SHA-256 hex of s.
func hashText(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}

// isHTML reports whether the Content-Type names an HTML document.
// An absent header is treated as HTML; competitor marketing sites
// occasionally omit it.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}
