// Package snapshot defines the crawl data model and the machinery that
// compares two crawls of the same competitor: the differ walks both page
// sets, the classifier decides which differences matter, and the result is a
// ChangeReport ready for delivery.
package snapshot

import "time"

// PageStatus is the fetch outcome for one page.
type PageStatus string

const (
	StatusOK     PageStatus = "ok"
	StatusFailed PageStatus = "failed"
)

// PageRecord is one crawled page. Failures are data: a failed fetch still
// produces a record, with Error set and the content fields empty.
type PageRecord struct {
	// URL is the canonical form; unique within a snapshot.
	URL        string     `json:"url"`
	Depth      int        `json:"depth"`
	Status     PageStatus `json:"status"`
	StatusCode int        `json:"status_code,omitempty"`
	// ContentHash is the SHA-256 of Text. Deterministic given identical text.
	ContentHash string `json:"content_hash,omitempty"`
	// Text is the normalized visible text, already truncated at capture time.
	Text     string   `json:"text,omitempty"`
	Markdown string   `json:"markdown,omitempty"`
	Links    []string `json:"links,omitempty"`
	// ScreenshotRef points at a captured image; empty when screenshots are
	// disabled or the capture failed.
	ScreenshotRef string    `json:"screenshot_ref,omitempty"`
	IsPricing     bool      `json:"is_pricing,omitempty"`
	Error         string    `json:"error,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// SiteSnapshot is one crawl run for one competitor. Immutable once the crawl
// finishes; persisted as a unit.
type SiteSnapshot struct {
	Competitor string    `json:"competitor"`
	Homepage   string    `json:"homepage"`
	CapturedAt time.Time `json:"captured_at"`
	// Pages is in crawl order. URLs are unique; the frontier guarantees it.
	Pages []PageRecord `json:"pages"`
}

// Page returns the record for a canonical URL, or nil.
func (s *SiteSnapshot) Page(url string) *PageRecord {
	for i := range s.Pages {
		if s.Pages[i].URL == url {
			return &s.Pages[i]
		}
	}
	return nil
}

// OKPages returns how many pages fetched successfully.
func (s *SiteSnapshot) OKPages() int {
	n := 0
	for i := range s.Pages {
		if s.Pages[i].Status == StatusOK {
			n++
		}
	}
	return n
}

// TextChange is one page whose text moved between snapshots.
type TextChange struct {
	URL           string  `json:"url"`
	OldHash       string  `json:"old_hash"`
	NewHash       string  `json:"new_hash"`
	ChangePercent float64 `json:"change_percent"`
	IsPricing     bool    `json:"is_pricing,omitempty"`
}

// VisualChange is one page whose screenshots diverged between snapshots.
type VisualChange struct {
	URL       string  `json:"url"`
	DiffScore float64 `json:"diff_score"`
}

// KeywordAlert is one watched term found on a page, with surrounding
// context.
type KeywordAlert struct {
	URL     string `json:"url"`
	Keyword string `json:"keyword"`
	Context string `json:"context"`
}

// ChangeReport is the outcome of diffing two snapshots. Ephemeral: computed
// per run, handed to the notifier, never persisted. An empty report is a
// valid terminal state meaning no significant change.
type ChangeReport struct {
	Competitor  string    `json:"competitor"`
	GeneratedAt time.Time `json:"generated_at"`
	// NewPages and RemovedPages are sorted canonical URLs.
	NewPages     []string `json:"new_pages,omitempty"`
	RemovedPages []string `json:"removed_pages,omitempty"`
	// TextChanges holds every change that cleared classification, sorted by
	// URL. PricingChanges is the pricing-flagged subset, duplicated here so
	// consumers can render pricing signal without re-filtering.
	TextChanges    []TextChange   `json:"text_changes,omitempty"`
	PricingChanges []TextChange   `json:"pricing_changes,omitempty"`
	VisualChanges  []VisualChange `json:"visual_changes,omitempty"`
	KeywordAlerts  []KeywordAlert `json:"keyword_alerts,omitempty"`
}

// HasChanges reports whether anything at all cleared classification.
func (r *ChangeReport) HasChanges() bool {
	return len(r.NewPages) > 0 ||
		len(r.RemovedPages) > 0 ||
		len(r.TextChanges) > 0 ||
		len(r.VisualChanges) > 0
}
