package monitor

import (
	"time"

	"github.com/vigilhq/vigil/media"
	"github.com/vigilhq/vigil/notify"
	"github.com/vigilhq/vigil/snapshot"
)

// CompetitorResult is one competitor's outcome within a run.
type CompetitorResult struct {
	Name         string                 `json:"name"`
	Tier         string                 `json:"tier,omitempty"`
	SnapshotID   string                 `json:"snapshot_id,omitempty"`
	PagesCrawled int                    `json:"pages_crawled"`
	PagesFailed  int                    `json:"pages_failed"`
	Report       *snapshot.ChangeReport `json:"report,omitempty"`

	// PricingExcerpt carries the changed pricing page's markdown for the
	// notifier. Empty when no pricing change was kept.
	PricingExcerpt string `json:"-"`
}

// RunError is one isolated failure inside a run. Competitor is empty for
// failures outside a competitor's scope (media sites carry the site name).
type RunError struct {
	Competitor string `json:"competitor,omitempty"`
	Stage      string `json:"stage"`
	Message    string `json:"message"`
}

// RunSummary aggregates a full monitoring run.
type RunSummary struct {
	ID          string             `json:"id"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	DryRun      bool               `json:"dry_run,omitempty"`
	CrawlOnly   bool               `json:"crawl_only,omitempty"`
	Competitors []CompetitorResult `json:"competitors"`
	Mentions    []media.Mention    `json:"mentions,omitempty"`
	Errors      []RunError         `json:"errors,omitempty"`
}

// TotalPages is the number of pages attempted across all competitors.
func (s *RunSummary) TotalPages() int {
	var n int
	for i := range s.Competitors {
		n += s.Competitors[i].PagesCrawled + s.Competitors[i].PagesFailed
	}
	return n
}

// TotalChanges counts reported changes across all competitors. Keyword
// alerts are advisories, not changes, and are not counted.
func (s *RunSummary) TotalChanges() int {
	var n int
	for i := range s.Competitors {
		r := s.Competitors[i].Report
		if r == nil {
			continue
		}
		n += len(r.NewPages) + len(r.RemovedPages) + len(r.TextChanges) + len(r.VisualChanges)
	}
	return n
}

// payload renders the summary into the notifier's shape. Mentions are
// grouped per article: one scan mention exists per (term, URL), the
// notifier wants one line per article with all its terms.
func (s *RunSummary) payload() *notify.Payload {
	p := &notify.Payload{GeneratedAt: s.FinishedAt}

	for i := range s.Competitors {
		c := &s.Competitors[i]
		p.Competitors = append(p.Competitors, notify.CompetitorSection{
			Name:           c.Name,
			Tier:           c.Tier,
			PagesCrawled:   c.PagesCrawled,
			PagesFailed:    c.PagesFailed,
			Report:         c.Report,
			PricingExcerpt: c.PricingExcerpt,
		})
	}

	var order []string
	byURL := make(map[string]*notify.MentionItem)
	for _, m := range s.Mentions {
		item, ok := byURL[m.URL]
		if !ok {
			order = append(order, m.URL)
			item = &notify.MentionItem{
				Site:     m.Site,
				Category: m.Category,
				Title:    m.Title,
				URL:      m.URL,
			}
			byURL[m.URL] = item
		}
		item.Terms = append(item.Terms, m.Term)
	}
	for _, u := range order {
		p.Mentions = append(p.Mentions, *byURL[u])
	}

	for _, e := range s.Errors {
		p.Errors = append(p.Errors, notify.ErrorItem{
			Competitor: e.Competitor,
			Stage:      e.Stage,
			Message:    e.Message,
		})
	}
	return p
}
