package snapshot

import (
	"errors"
	"math"
	"sort"
	"testing"
	"time"
)

// okPage builds a successful page record whose hash tracks its text.
func okPage(url, text string) PageRecord {
	return PageRecord{
		URL:         url,
		Status:      StatusOK,
		StatusCode:  200,
		Text:        text,
		ContentHash: "hash:" + text,
		FetchedAt:   time.Now().UTC(),
	}
}

func site(pages ...PageRecord) *SiteSnapshot {
	return &SiteSnapshot{
		Competitor: "acme",
		Homepage:   "https://acme.example",
		CapturedAt: time.Now().UTC(),
		Pages:      pages,
	}
}

func TestDiff_FirstRun(t *testing.T) {
	// WHAT: Diffing against no prior snapshot yields an empty report.
	// WHY: First run is an expected state, not an error, and must not
	// announce the entire site as new.
	d := NewDiffer(Classifier{ContentThreshold: 5})
	report := d.Diff(nil, site(okPage("https://acme.example", "home")))
	if report.Competitor != "acme" {
		t.Errorf("competitor: got %q", report.Competitor)
	}
	if report.HasChanges() {
		t.Errorf("first run should report nothing: %+v", report)
	}
}

func TestDiff_IdenticalSnapshots(t *testing.T) {
	// WHAT: Identical page sets with identical hashes report nothing.
	d := NewDiffer(Classifier{ContentThreshold: 5})
	old := site(okPage("https://acme.example", "home"), okPage("https://acme.example/pricing", "plans"))
	curr := site(okPage("https://acme.example", "home"), okPage("https://acme.example/pricing", "plans"))
	if report := d.Diff(old, curr); report.HasChanges() {
		t.Errorf("identical snapshots should report nothing: %+v", report)
	}
}

func TestDiff_Scenario(t *testing.T) {
	// WHAT: Run 2 adds /blog, removes /about, and rewrites 20% of the
	// pricing page; the report names each in its place.
	oldPricing := okPage("https://acme.example/pricing", "alpha beta gamma delta epsilon zeta eta theta iota kappa")
	oldPricing.IsPricing = true
	newPricing := okPage("https://acme.example/pricing", "alpha beta gamma delta epsilon zeta eta theta omega lambda")
	newPricing.IsPricing = true

	old := site(okPage("https://acme.example", "home"), oldPricing, okPage("https://acme.example/about", "about us"))
	curr := site(okPage("https://acme.example", "home"), newPricing, okPage("https://acme.example/blog", "news"))

	d := NewDiffer(Classifier{ContentThreshold: 5})
	report := d.Diff(old, curr)

	if len(report.NewPages) != 1 || report.NewPages[0] != "https://acme.example/blog" {
		t.Errorf("new pages: got %v", report.NewPages)
	}
	if len(report.RemovedPages) != 1 || report.RemovedPages[0] != "https://acme.example/about" {
		t.Errorf("removed pages: got %v", report.RemovedPages)
	}
	if len(report.PricingChanges) != 1 || report.PricingChanges[0].URL != "https://acme.example/pricing" {
		t.Fatalf("pricing changes: got %v", report.PricingChanges)
	}
	if got := report.PricingChanges[0].ChangePercent; math.Abs(got-20) > 0.001 {
		t.Errorf("pricing change percent: got %v, want 20", got)
	}
	if len(report.TextChanges) != 1 || report.TextChanges[0].URL != "https://acme.example/pricing" {
		t.Errorf("pricing change should also appear in text changes: %v", report.TextChanges)
	}
}

func TestDiff_CheapPathSkipsEqualHashes(t *testing.T) {
	// WHAT: Equal content hashes short-circuit; the texts are never diffed.
	// WHY: The hash is the contract for equality. If it matches, text diff
	// cost must not be paid.
	oldP := okPage("https://acme.example", "text ignored one")
	newP := okPage("https://acme.example", "text ignored two")
	oldP.ContentHash = "same"
	newP.ContentHash = "same"

	d := NewDiffer(Classifier{ContentThreshold: 0})
	if report := d.Diff(site(oldP), site(newP)); len(report.TextChanges) != 0 {
		t.Errorf("equal hashes must not produce a text change: %+v", report.TextChanges)
	}
}

func TestDiff_BelowThresholdSuppressed(t *testing.T) {
	// WHAT: A small non-pricing change stays out of the report.
	old := site(okPage("https://acme.example/docs", "one two three four five six seven eight nine ten "+
		"eleven twelve thirteen fourteen fifteen sixteen seventeen eighteen nineteen twenty"))
	curr := site(okPage("https://acme.example/docs", "one two three four five six seven eight nine ten "+
		"eleven twelve thirteen fourteen fifteen sixteen seventeen eighteen nineteen twentyone"))

	d := NewDiffer(Classifier{ContentThreshold: 10})
	report := d.Diff(old, curr)
	if len(report.TextChanges) != 0 {
		t.Errorf("5%% change under a 10%% threshold should be suppressed: %+v", report.TextChanges)
	}
}

func TestDiff_FailedPagesAreAbsent(t *testing.T) {
	// WHAT: A page that failed this run counts as absent, so it shows up as
	// removed; pages failed on both sides are invisible.
	failed := PageRecord{URL: "https://acme.example/flaky", Status: StatusFailed, Error: "timeout"}
	old := site(okPage("https://acme.example", "home"), okPage("https://acme.example/flaky", "content"))
	curr := site(okPage("https://acme.example", "home"), failed)

	d := NewDiffer(Classifier{})
	report := d.Diff(old, curr)
	if len(report.RemovedPages) != 1 || report.RemovedPages[0] != "https://acme.example/flaky" {
		t.Errorf("failed page should appear as removed: %v", report.RemovedPages)
	}
}

func TestDiff_VisualChanges(t *testing.T) {
	// WHAT: Screenshot pairs are scored; missing refs and compare errors
	// skip the URL without failing the diff.
	oldA := okPage("https://acme.example/a", "a")
	oldA.ScreenshotRef = "old/a.png"
	newA := okPage("https://acme.example/a", "a")
	newA.ScreenshotRef = "new/a.png"

	oldB := okPage("https://acme.example/b", "b")
	newB := okPage("https://acme.example/b", "b")
	newB.ScreenshotRef = "new/b.png" // old side absent

	oldC := okPage("https://acme.example/c", "c")
	oldC.ScreenshotRef = "old/c.png"
	newC := okPage("https://acme.example/c", "c")
	newC.ScreenshotRef = "new/c.png"

	compare := func(oldRef, newRef string) (float64, error) {
		switch oldRef {
		case "old/a.png":
			return 42, nil
		case "old/c.png":
			return 0, errors.New("unreadable")
		}
		t.Fatalf("unexpected compare: %s vs %s", oldRef, newRef)
		return 0, nil
	}

	d := NewDiffer(Classifier{VisualThreshold: 10}, WithVisualCompare(compare))
	report := d.Diff(site(oldA, oldB, oldC), site(newA, newB, newC))

	if len(report.VisualChanges) != 1 {
		t.Fatalf("visual changes: got %+v", report.VisualChanges)
	}
	if vc := report.VisualChanges[0]; vc.URL != "https://acme.example/a" || vc.DiffScore != 42 {
		t.Errorf("got %+v", vc)
	}
}

func TestDiff_VisualDisabledWithoutCompareFunc(t *testing.T) {
	// WHAT: Without a compare func, screenshot refs are carried but never
	// compared.
	oldA := okPage("https://acme.example", "a")
	oldA.ScreenshotRef = "old.png"
	newA := okPage("https://acme.example", "a")
	newA.ScreenshotRef = "new.png"

	d := NewDiffer(Classifier{VisualThreshold: 0})
	if report := d.Diff(site(oldA), site(newA)); len(report.VisualChanges) != 0 {
		t.Errorf("visual diffing should be off: %+v", report.VisualChanges)
	}
}

func TestDiff_DeterministicOrder(t *testing.T) {
	// WHAT: Report lists are sorted by URL regardless of page order.
	// WHY: Map iteration would otherwise shuffle every report.
	old := site(okPage("https://acme.example", "home"))
	curr := site(
		okPage("https://acme.example", "home"),
		okPage("https://acme.example/z", "z"),
		okPage("https://acme.example/a", "a"),
		okPage("https://acme.example/m", "m"),
	)

	d := NewDiffer(Classifier{})
	report := d.Diff(old, curr)
	if !sort.StringsAreSorted(report.NewPages) {
		t.Errorf("new pages not sorted: %v", report.NewPages)
	}
	if len(report.NewPages) != 3 {
		t.Errorf("got %d new pages, want 3", len(report.NewPages))
	}
}
