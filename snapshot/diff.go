package snapshot

import (
	"log/slog"
	"sort"
	"time"
)

// VisualCompareFunc scores the difference between two stored screenshots,
// addressed by their refs, as a percentage in [0,100].
type VisualCompareFunc func(oldRef, newRef string) (float64, error)

// Differ compares two snapshots of the same competitor and produces a
// ChangeReport filtered through a Classifier.
type Differ struct {
	classifier Classifier
	visual     VisualCompareFunc
	log        *slog.Logger
}

// DifferOption configures a Differ.
type DifferOption func(*Differ)

// WithVisualCompare enables visual diffing. Without it, screenshot refs are
// carried in snapshots but never compared.
func WithVisualCompare(fn VisualCompareFunc) DifferOption {
	return func(d *Differ) { d.visual = fn }
}

// WithLogger sets the differ's logger.
func WithLogger(log *slog.Logger) DifferOption {
	return func(d *Differ) { d.log = log }
}

// NewDiffer creates a Differ with the given threshold policy.
func NewDiffer(classifier Classifier, opts ...DifferOption) *Differ {
	d := &Differ{classifier: classifier}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	return d
}

// Diff compares the previous snapshot against the current one. A nil old
// snapshot is the first run: there is nothing to compare, and the result is
// an empty report, not an error.
//
// Only successfully fetched pages participate. A page that failed this run
// is indistinguishable from an absent one, which means a transient failure
// shows up as removed and then as new when it recovers.
func (d *Differ) Diff(old, curr *SiteSnapshot) *ChangeReport {
	report := &ChangeReport{
		Competitor:  curr.Competitor,
		GeneratedAt: time.Now().UTC(),
	}
	if old == nil {
		return report
	}

	oldPages := indexOK(old)
	newPages := indexOK(curr)

	for url := range newPages {
		if _, ok := oldPages[url]; !ok {
			report.NewPages = append(report.NewPages, url)
		}
	}
	for url := range oldPages {
		if _, ok := newPages[url]; !ok {
			report.RemovedPages = append(report.RemovedPages, url)
		}
	}

	for url, np := range newPages {
		op, ok := oldPages[url]
		if !ok {
			continue
		}

		// Hash equality is the cheap path; identical text never reaches
		// the quadratic diff.
		if op.ContentHash != np.ContentHash {
			pct := ChangePercent(op.Text, np.Text)
			if d.classifier.KeepText(pct, np.IsPricing) {
				tc := TextChange{
					URL:           url,
					OldHash:       op.ContentHash,
					NewHash:       np.ContentHash,
					ChangePercent: pct,
					IsPricing:     np.IsPricing,
				}
				report.TextChanges = append(report.TextChanges, tc)
				if np.IsPricing {
					report.PricingChanges = append(report.PricingChanges, tc)
				}
			}
		}

		// Visual comparison is independent of the text path: a layout or
		// imagery change can move pixels without moving a word. Skipped
		// unless both sides captured a screenshot.
		if d.visual != nil && op.ScreenshotRef != "" && np.ScreenshotRef != "" {
			score, err := d.visual(op.ScreenshotRef, np.ScreenshotRef)
			if err != nil {
				d.log.Warn("visual compare failed", "competitor", curr.Competitor, "url", url, "error", err)
			} else if d.classifier.KeepVisual(score) {
				report.VisualChanges = append(report.VisualChanges, VisualChange{URL: url, DiffScore: score})
			}
		}
	}

	sortReport(report)
	return report
}

// indexOK maps canonical URL to record for successfully fetched pages.
func indexOK(s *SiteSnapshot) map[string]*PageRecord {
	idx := make(map[string]*PageRecord, len(s.Pages))
	for i := range s.Pages {
		if s.Pages[i].Status == StatusOK {
			idx[s.Pages[i].URL] = &s.Pages[i]
		}
	}
	return idx
}

// sortReport orders every list by URL so reports are deterministic under
// map iteration.
func sortReport(r *ChangeReport) {
	sort.Strings(r.NewPages)
	sort.Strings(r.RemovedPages)
	sort.Slice(r.TextChanges, func(i, j int) bool { return r.TextChanges[i].URL < r.TextChanges[j].URL })
	sort.Slice(r.PricingChanges, func(i, j int) bool { return r.PricingChanges[i].URL < r.PricingChanges[j].URL })
	sort.Slice(r.VisualChanges, func(i, j int) bool { return r.VisualChanges[i].URL < r.VisualChanges[j].URL })
}
