// Package notify renders run reports and delivers them to Slack.
//
// The core hands a Payload to a Notifier and never knows whether delivery
// is a webhook POST, a dry-run log line, or nothing at all.
package notify

import (
	"context"
	"time"

	"github.com/vigilhq/vigil/snapshot"
)

// CompetitorSection is one competitor's slice of the report.
type CompetitorSection struct {
	Name         string
	Tier         string
	PagesCrawled int
	PagesFailed  int
	Report       *snapshot.ChangeReport

	// PricingExcerpt is a short markdown sample of the changed pricing
	// page, when one changed.
	PricingExcerpt string
}

// MentionItem is one newly seen media article naming a watched term.
type MentionItem struct {
	Site     string
	Category string
	Title    string
	URL      string
	Terms    []string
}

// ErrorItem is a non-fatal failure surfaced in the report.
type ErrorItem struct {
	Competitor string
	Stage      string
	Message    string
}

// Payload is everything one delivery carries.
type Payload struct {
	GeneratedAt time.Time
	Competitors []CompetitorSection
	Mentions    []MentionItem
	Errors      []ErrorItem
}

// HasContent reports whether anything in the payload is worth a message
// beyond the quiet-week summary.
func (p *Payload) HasContent() bool {
	for i := range p.Competitors {
		if sectionHasContent(&p.Competitors[i]) {
			return true
		}
	}
	return len(p.Mentions) > 0 || len(p.Errors) > 0
}

// Notifier delivers a rendered payload. With dryRun the payload is rendered
// and logged but nothing leaves the process.
type Notifier interface {
	Send(ctx context.Context, p *Payload, dryRun bool) error
}

// Nop swallows reports. Used when no webhook is configured.
type Nop struct{}

func (Nop) Send(ctx context.Context, p *Payload, dryRun bool) error { return nil }
