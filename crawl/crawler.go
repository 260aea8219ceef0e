package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vigilhq/vigil/fetch"
	"github.com/vigilhq/vigil/snapshot"
)

// Fetcher retrieves one page. *fetch.Fetcher satisfies it; tests substitute
// their own.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Renderer captures a screenshot of a page and returns a ref to the stored
// image. Implementations that have screenshots disabled return ("", nil);
// the ref is simply absent. A capture failure is an error, and the page's
// text record stands alone.
type Renderer interface {
	Screenshot(ctx context.Context, competitor, pageURL string) (string, error)
}

// Site identifies one competitor website to crawl.
type Site struct {
	Competitor string
	Homepage   string
	// PricingURL and NewsURL, when set, are seeded into the frontier at
	// depth 0 alongside the homepage.
	PricingURL string
	NewsURL    string
}

// Config bounds a crawl.
type Config struct {
	// MaxPages caps how many URLs one site crawl will attempt. Default: 50.
	MaxPages int
	// MaxDepth is the deepest link level followed from the seeds. 0 means
	// seeds only.
	MaxDepth int
	// IsPricing flags pricing pages by canonical URL. When nil, a
	// PricingDetector built from the site's PricingURL is used.
	IsPricing func(canonicalURL string) bool
	Logger    *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxPages <= 0 {
		c.MaxPages = 50
	}
	if c.MaxDepth < 0 {
		c.MaxDepth = 0
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Crawler walks one site at a time, breadth-first, sequentially. It owns no
// shared state across calls; each Crawl gets a fresh frontier.
type Crawler struct {
	fetcher  Fetcher
	renderer Renderer
	config   Config
	log      *slog.Logger
}

// New creates a Crawler. renderer must not be nil; use render.Nop{} when
// screenshots are disabled.
func New(fetcher Fetcher, renderer Renderer, cfg Config) *Crawler {
	cfg.defaults()
	return &Crawler{
		fetcher:  fetcher,
		renderer: renderer,
		config:   cfg,
		log:      cfg.Logger,
	}
}

// Crawl walks site breadth-first from its seeds and returns the assembled
// snapshot. Fetch failures are recorded as failed pages and the crawl
// continues; the one exception is the homepage seed, whose failure abandons
// the site and yields an empty-but-valid snapshot. Cancelling ctx stops the
// crawl and returns ctx's error.
func (c *Crawler) Crawl(ctx context.Context, site Site) (*snapshot.SiteSnapshot, error) {
	scope, err := NewScope(site.Homepage)
	if err != nil {
		return nil, fmt.Errorf("scope for %s: %w", site.Competitor, err)
	}
	home, err := scope.Normalize(site.Homepage)
	if err != nil {
		return nil, fmt.Errorf("homepage for %s: %w", site.Competitor, err)
	}

	frontier := NewFrontier(c.config.MaxPages)
	frontier.Push(home, 0)

	var pricingCanonical string
	if site.PricingURL != "" {
		p, err := scope.Normalize(site.PricingURL)
		if err != nil {
			c.log.Warn("pricing url not crawlable", "competitor", site.Competitor, "url", site.PricingURL, "error", err)
		} else {
			pricingCanonical = p
			frontier.Push(p, 0)
		}
	}
	if site.NewsURL != "" {
		n, err := scope.Normalize(site.NewsURL)
		if err != nil {
			c.log.Warn("news url not crawlable", "competitor", site.Competitor, "url", site.NewsURL, "error", err)
		} else {
			frontier.Push(n, 0)
		}
	}

	isPricing := c.config.IsPricing
	if isPricing == nil {
		isPricing = PricingDetector{PricingURL: pricingCanonical}.IsPricing
	}

	snap := &snapshot.SiteSnapshot{
		Competitor: site.Competitor,
		Homepage:   home,
		CapturedAt: time.Now().UTC(),
	}

	c.log.Info("crawl start", "competitor", site.Competitor, "homepage", home,
		"max_pages", c.config.MaxPages, "max_depth", c.config.MaxDepth)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		url, depth, ok := frontier.Pop()
		if !ok {
			break
		}

		res, err := c.fetcher.Fetch(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if url == home && len(snap.Pages) == 0 {
				c.log.Warn("homepage unreachable, abandoning site",
					"competitor", site.Competitor, "url", url, "error", err)
				snap.Pages = nil
				return snap, nil
			}
			rec := snapshot.PageRecord{
				URL:       url,
				Depth:     depth,
				Status:    snapshot.StatusFailed,
				Error:     err.Error(),
				FetchedAt: time.Now().UTC(),
			}
			if res != nil {
				rec.StatusCode = res.StatusCode
			}
			snap.Pages = append(snap.Pages, rec)
			c.log.Warn("page fetch failed", "competitor", site.Competitor, "url", url, "error", err)
			continue
		}

		rec := snapshot.PageRecord{
			URL:         url,
			Depth:       depth,
			Status:      snapshot.StatusOK,
			StatusCode:  res.StatusCode,
			ContentHash: res.Hash,
			Text:        res.Text,
			Markdown:    res.Markdown,
			Links:       res.Links,
			IsPricing:   isPricing(url),
			FetchedAt:   res.FetchedAt,
		}

		ref, err := c.renderer.Screenshot(ctx, site.Competitor, url)
		if err != nil {
			c.log.Warn("screenshot failed", "competitor", site.Competitor, "url", url, "error", err)
		} else {
			rec.ScreenshotRef = ref
		}

		if depth < c.config.MaxDepth {
			for _, link := range res.Links {
				canonical, err := scope.Normalize(link)
				if err != nil {
					continue
				}
				frontier.Push(canonical, depth+1)
			}
		}

		snap.Pages = append(snap.Pages, rec)
		c.log.Debug("page crawled", "competitor", site.Competitor, "url", url, "depth", depth)
	}

	c.log.Info("crawl done", "competitor", site.Competitor,
		"pages", len(snap.Pages), "ok", snap.OKPages())
	return snap, nil
}
