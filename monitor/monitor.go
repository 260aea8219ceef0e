// Package monitor orchestrates full monitoring runs: crawl every
// configured competitor, persist and diff snapshots, scan media, deliver
// one aggregated report.
//
// Failures inside one competitor are isolated: they land in the summary's
// errors section and the remaining competitors still run. The only failure
// that escapes as an error from a started run is report delivery.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vigilhq/vigil/config"
	"github.com/vigilhq/vigil/crawl"
	"github.com/vigilhq/vigil/idgen"
	"github.com/vigilhq/vigil/imagediff"
	"github.com/vigilhq/vigil/media"
	"github.com/vigilhq/vigil/metrics"
	"github.com/vigilhq/vigil/notify"
	"github.com/vigilhq/vigil/render"
	"github.com/vigilhq/vigil/snapshot"
	"github.com/vigilhq/vigil/store"
)

// ErrRunInFlight is returned when a run is requested while another is
// still executing. Runs never overlap: politeness delays and the
// single-writer store both assume one run at a time.
var ErrRunInFlight = errors.New("monitor: run already in flight")

// ErrUnknownCompetitor is returned when a run is scoped to a name the
// configuration does not contain.
var ErrUnknownCompetitor = errors.New("monitor: unknown competitor")

// Store is the persistence surface the service needs.
type Store interface {
	LoadLatest(ctx context.Context, competitor string) (*snapshot.SiteSnapshot, error)
	SaveSnapshot(ctx context.Context, snap *snapshot.SiteSnapshot) (string, error)
	Prune(ctx context.Context, competitor string, keep int) (int, error)
	RecordRun(ctx context.Context, rec *store.RunRecord) (string, error)
}

// MediaScanner scans news sites for new term mentions.
type MediaScanner interface {
	Scan(ctx context.Context) (*media.ScanResult, error)
}

// RunOptions select a run's mode.
type RunOptions struct {
	// Competitor restricts the run to one configured competitor.
	Competitor string
	// CrawlOnly crawls and saves snapshots but skips diff, media scan and
	// notification.
	CrawlOnly bool
	// NoScreenshots replaces the renderer with a no-op for this run.
	NoScreenshots bool
	// DryRun renders the report without delivering it.
	DryRun bool
}

// Service runs the monitoring workflow.
type Service struct {
	cfg      *config.Config
	store    Store
	fetcher  crawl.Fetcher
	renderer crawl.Renderer
	notifier notify.Notifier
	scanner  MediaScanner
	differ   *snapshot.Differ
	metrics  *metrics.Metrics
	newID    idgen.Generator
	log      *slog.Logger

	running atomic.Bool
}

// Option configures optional collaborators.
type Option func(*Service)

// WithRenderer sets the screenshot renderer. Default: render.Nop.
func WithRenderer(r crawl.Renderer) Option {
	return func(s *Service) { s.renderer = r }
}

// WithNotifier sets the report notifier. Default: notify.Nop.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithScanner enables media scanning.
func WithScanner(sc MediaScanner) Option {
	return func(s *Service) { s.scanner = sc }
}

// WithMetrics sets the metrics sink. Default: a private registry, so
// unmetered embedders and tests never trip duplicate registration.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// New creates a Service. cfg must already be validated.
func New(cfg *config.Config, st Store, fetcher crawl.Fetcher, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		store:    st,
		fetcher:  fetcher,
		renderer: render.Nop{},
		notifier: notify.Nop{},
		newID:    idgen.Default,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(prometheus.NewRegistry())
	}

	shotDir := cfg.Screenshots.Dir
	s.differ = snapshot.NewDiffer(
		snapshot.Classifier{
			ContentThreshold: cfg.Thresholds.ContentChangePercent,
			VisualThreshold:  cfg.Thresholds.VisualChangePercent,
		},
		snapshot.WithVisualCompare(func(oldRef, newRef string) (float64, error) {
			return imagediff.Compare(filepath.Join(shotDir, oldRef), filepath.Join(shotDir, newRef))
		}),
		snapshot.WithLogger(s.log),
	)
	return s
}

// Running reports whether a run is currently executing.
func (s *Service) Running() bool {
	return s.running.Load()
}

// Run executes one full run synchronously.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInFlight
	}
	defer s.running.Store(false)
	return s.run(ctx, s.newID(), opts)
}

// StartRun launches a run in the background and returns its id
// immediately. The run outlives the caller's request context. The
// competitor filter is validated up front so callers get the rejection
// synchronously, not buried in a background log line.
func (s *Service) StartRun(opts RunOptions) (string, error) {
	if _, err := s.selectCompetitors(opts.Competitor); err != nil {
		return "", err
	}
	if !s.running.CompareAndSwap(false, true) {
		return "", ErrRunInFlight
	}
	id := s.newID()
	go func() {
		defer s.running.Store(false)
		if _, err := s.run(context.Background(), id, opts); err != nil {
			s.log.Error("background run failed", "run_id", id, "error", err)
		}
	}()
	return id, nil
}

func (s *Service) run(ctx context.Context, id string, opts RunOptions) (*RunSummary, error) {
	competitors, err := s.selectCompetitors(opts.Competitor)
	if err != nil {
		return nil, err
	}

	sum := &RunSummary{
		ID:        id,
		StartedAt: time.Now().UTC(),
		DryRun:    opts.DryRun,
		CrawlOnly: opts.CrawlOnly,
	}
	s.log.Info("run start",
		"run_id", id,
		"competitors", len(competitors),
		"crawl_only", opts.CrawlOnly,
		"dry_run", opts.DryRun)

	crawler := s.newCrawler(opts)
	for i := range competitors {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		res, runErrs := s.runCompetitor(ctx, crawler, &competitors[i], opts)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		sum.Errors = append(sum.Errors, runErrs...)
		if res != nil {
			sum.Competitors = append(sum.Competitors, *res)
		}
	}

	if s.scanner != nil && !opts.CrawlOnly {
		scan, err := s.scanner.Scan(ctx)
		if err != nil {
			return nil, err
		}
		sum.Mentions = scan.Mentions
		for _, se := range scan.Errors {
			sum.Errors = append(sum.Errors, RunError{
				Competitor: se.Site,
				Stage:      "media",
				Message:    se.Err.Error(),
			})
		}
	}

	sum.FinishedAt = time.Now().UTC()

	var deliveryErr error
	if !opts.CrawlOnly {
		if err := s.notifier.Send(ctx, sum.payload(), opts.DryRun); err != nil {
			deliveryErr = fmt.Errorf("deliver report: %w", err)
		}
	}

	s.finishRun(ctx, sum, deliveryErr)
	if deliveryErr != nil {
		return sum, deliveryErr
	}
	return sum, nil
}

// runCompetitor executes one competitor's stages. A stage failure records
// an error; later stages that can still produce value continue.
func (s *Service) runCompetitor(ctx context.Context, crawler *crawl.Crawler, comp *config.CompetitorConfig, opts RunOptions) (*CompetitorResult, []RunError) {
	var errs []RunError
	fail := func(stage string, err error) {
		s.log.Warn("competitor stage failed", "competitor", comp.Name, "stage", stage, "error", err)
		errs = append(errs, RunError{Competitor: comp.Name, Stage: stage, Message: err.Error()})
	}

	prior, err := s.store.LoadLatest(ctx, comp.Name)
	if err != nil {
		fail("load", err)
		return nil, errs
	}

	snap, err := crawler.Crawl(ctx, crawl.Site{
		Competitor: comp.Name,
		Homepage:   comp.Website,
		PricingURL: comp.PricingURL,
		NewsURL:    comp.NewsURL,
	})
	if err != nil {
		fail("crawl", err)
		return nil, errs
	}

	res := &CompetitorResult{Name: comp.Name, Tier: comp.Tier}
	for i := range snap.Pages {
		if snap.Pages[i].Status == snapshot.StatusOK {
			res.PagesCrawled++
			s.metrics.IncPage(comp.Name, "ok")
		} else {
			res.PagesFailed++
			s.metrics.IncPage(comp.Name, "failed")
			s.metrics.IncFetchError(comp.Name)
		}
	}

	if id, err := s.store.SaveSnapshot(ctx, snap); err != nil {
		// The diff still runs: losing this save means the same changes
		// resurface next run, which beats losing this run's report.
		fail("save", err)
	} else {
		res.SnapshotID = id
		if _, err := s.store.Prune(ctx, comp.Name, s.cfg.Storage.KeepSnapshots); err != nil {
			fail("prune", err)
		}
	}

	if opts.CrawlOnly {
		return res, errs
	}

	report := s.differ.Diff(prior, snap)
	report.KeywordAlerts = snapshot.FindKeywordAlerts(prior, snap, s.cfg.Keywords)
	res.Report = report
	res.PricingExcerpt = pricingExcerpt(report, snap)

	s.metrics.AddChanges(comp.Name, metrics.KindNewPage, len(report.NewPages))
	s.metrics.AddChanges(comp.Name, metrics.KindRemovedPage, len(report.RemovedPages))
	s.metrics.AddChanges(comp.Name, metrics.KindText, len(report.TextChanges)-len(report.PricingChanges))
	s.metrics.AddChanges(comp.Name, metrics.KindPricing, len(report.PricingChanges))
	s.metrics.AddChanges(comp.Name, metrics.KindVisual, len(report.VisualChanges))
	s.metrics.AddChanges(comp.Name, metrics.KindKeyword, len(report.KeywordAlerts))

	return res, errs
}

func (s *Service) selectCompetitors(only string) ([]config.CompetitorConfig, error) {
	if only == "" {
		return s.cfg.Competitors, nil
	}
	comp, ok := s.cfg.Competitor(only)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompetitor, only)
	}
	return []config.CompetitorConfig{*comp}, nil
}

func (s *Service) newCrawler(opts RunOptions) *crawl.Crawler {
	renderer := s.renderer
	if opts.NoScreenshots {
		renderer = render.Nop{}
	}
	return crawl.New(s.fetcher, renderer, crawl.Config{
		MaxPages: s.cfg.Crawl.MaxPagesPerSite,
		MaxDepth: s.cfg.Crawl.MaxDepth,
		Logger:   s.log,
	})
}

// finishRun records the run trace and metrics. Recording failures are
// logged, not returned: the run itself already happened.
func (s *Service) finishRun(ctx context.Context, sum *RunSummary, deliveryErr error) {
	status := metrics.RunOK
	if deliveryErr != nil {
		status = metrics.RunError
		sum.Errors = append(sum.Errors, RunError{Stage: "notify", Message: deliveryErr.Error()})
	}
	s.metrics.IncRun(status)
	s.metrics.ObserveRunDuration(sum.FinishedAt.Sub(sum.StartedAt))

	errStrings := make([]string, 0, len(sum.Errors))
	for _, e := range sum.Errors {
		msg := e.Stage + ": " + e.Message
		if e.Competitor != "" {
			msg = e.Competitor + ": " + msg
		}
		errStrings = append(errStrings, msg)
	}

	rec := &store.RunRecord{
		ID:          sum.ID,
		StartedAt:   sum.StartedAt,
		FinishedAt:  sum.FinishedAt,
		Competitors: len(sum.Competitors),
		Pages:       sum.TotalPages(),
		Changes:     sum.TotalChanges(),
		Errors:      errStrings,
		DryRun:      sum.DryRun,
	}
	if _, err := s.store.RecordRun(ctx, rec); err != nil {
		s.log.Error("record run failed", "run_id", sum.ID, "error", err)
	}

	s.log.Info("run done",
		"run_id", sum.ID,
		"competitors", len(sum.Competitors),
		"pages", rec.Pages,
		"changes", rec.Changes,
		"errors", len(sum.Errors),
		"duration", sum.FinishedAt.Sub(sum.StartedAt))
}

// pricingExcerpt pulls the changed pricing page's markdown from the
// current snapshot for the notifier.
func pricingExcerpt(report *snapshot.ChangeReport, snap *snapshot.SiteSnapshot) string {
	if len(report.PricingChanges) == 0 {
		return ""
	}
	page := snap.Page(report.PricingChanges[0].URL)
	if page == nil {
		return ""
	}
	return page.Markdown
}
