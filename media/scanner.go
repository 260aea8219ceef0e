// Package media scans industry news sites for articles mentioning watched
// terms.
//
// Only article links count, never the index page itself, and a mention is
// reported exactly once per (term, article) pair: the store remembers what
// has been seen, so weekly scans surface only new coverage.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 10 << 20

// Source is one news site to scan.
type Source struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`

	// Browser marks bot-protected sites whose article lists only render
	// in a real browser.
	Browser bool `yaml:"browser"`
}

// Mention is one new article naming a watched term.
type Mention struct {
	Site     string    `json:"site"`
	Category string    `json:"category,omitempty"`
	Term     string    `json:"term"`
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	SeenAt   time.Time `json:"seen_at"`
}

// SiteError is an isolated per-site scan failure.
type SiteError struct {
	Site string
	Err  error
}

// ScanResult aggregates one scan across all sources.
type ScanResult struct {
	Mentions []Mention
	Errors   []SiteError
}

// MentionStore persists (site, term, article) triples and reports whether
// a triple was new.
type MentionStore interface {
	RecordMention(ctx context.Context, site, term, articleURL, title string, seenAt time.Time) (bool, error)
}

// PageLoader returns rendered HTML for sites that block plain HTTP clients.
type PageLoader interface {
	HTML(ctx context.Context, url string) (string, error)
}

// Config configures the scanner.
type Config struct {
	Sources []Source
	Terms   []string

	// Delay is the politeness wait before each site fetch. Zero disables.
	Delay time.Duration

	// Timeout bounds one site fetch. Default: 30s.
	Timeout time.Duration

	// UserAgent for plain fetches. News sites reject obvious bots, so the
	// default imitates a desktop browser.
	UserAgent string

	// Loader renders Browser-flagged sources. Nil downgrades them to
	// plain fetches.
	Loader PageLoader

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Scanner fetches configured news sites and reports new term mentions.
type Scanner struct {
	cfg     Config
	store   MentionStore
	client  *http.Client
	limiter *rate.Limiter
	terms   []termMatcher
	now     func() time.Time
}

type termMatcher struct {
	term string
	re   *regexp.Regexp
}

// NewScanner creates a Scanner backed by the given mention store.
func NewScanner(store MentionStore, cfg Config) *Scanner {
	cfg.defaults()

	matchers := make([]termMatcher, 0, len(cfg.Terms))
	for _, term := range cfg.Terms {
		// Word-boundary match so "SIS" does not fire on "Mississippi".
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
		matchers = append(matchers, termMatcher{term: term, re: re})
	}

	limiter := rate.NewLimiter(rate.Every(cfg.Delay), 1)
	limiter.Allow()

	return &Scanner{
		cfg:     cfg,
		store:   store,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		terms:   matchers,
		now:     time.Now,
	}
}

// Scan visits every configured source sequentially. Per-site failures are
// isolated into the result; the returned error is non-nil only when the
// context ends the scan early.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	log := s.cfg.Logger
	res := &ScanResult{}

	log.Info("media scan start", "sources", len(s.cfg.Sources), "terms", len(s.cfg.Terms))

	for _, src := range s.cfg.Sources {
		if err := s.limiter.Wait(ctx); err != nil {
			return res, fmt.Errorf("politeness wait: %w", err)
		}

		mentions, err := s.scanSite(ctx, src)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Warn("media site scan failed", "site", src.Name, "error", err)
			res.Errors = append(res.Errors, SiteError{Site: src.Name, Err: err})
			continue
		}
		res.Mentions = append(res.Mentions, mentions...)
	}

	log.Info("media scan done", "mentions", len(res.Mentions), "failed_sites", len(res.Errors))
	return res, nil
}

func (s *Scanner) scanSite(ctx context.Context, src Source) ([]Mention, error) {
	base, err := url.Parse(src.URL)
	if err != nil {
		return nil, fmt.Errorf("bad source url: %w", err)
	}

	html, err := s.fetchHTML(ctx, src)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	articles := extractArticles(doc, base)
	s.cfg.Logger.Debug("media site scanned", "site", src.Name, "articles", len(articles))

	var out []Mention
	for _, a := range articles {
		for _, tm := range s.terms {
			if !tm.re.MatchString(a.title) {
				continue
			}
			seenAt := s.now()
			novel, err := s.store.RecordMention(ctx, src.Name, tm.term, a.url, a.title, seenAt)
			if err != nil {
				return out, fmt.Errorf("record mention: %w", err)
			}
			if novel {
				out = append(out, Mention{
					Site:     src.Name,
					Category: src.Category,
					Term:     tm.term,
					URL:      a.url,
					Title:    a.title,
					SeenAt:   seenAt,
				})
			}
		}
	}
	return out, nil
}

func (s *Scanner) fetchHTML(ctx context.Context, src Source) (string, error) {
	if src.Browser && s.cfg.Loader != nil {
		html, err := s.cfg.Loader.HTML(ctx, src.URL)
		if err != nil {
			return "", fmt.Errorf("render %s: %w", src.URL, err)
		}
		return html, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}
