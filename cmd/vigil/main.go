// Command vigil monitors competitor websites for meaningful changes.
//
// The default invocation performs one run: crawl every configured
// competitor, diff against the previous snapshot, scan news sites for
// mentions, and deliver the report to Slack. With -serve it instead
// starts the ops HTTP API and waits for run triggers.
//
// Exit status is 0 when the run completes, even if individual
// competitors failed; those failures are isolated and reported in the
// summary. Exit status 1 means the run itself could not proceed: bad
// configuration, an unusable store, or a report that could not be
// delivered.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vigilhq/vigil/api"
	"github.com/vigilhq/vigil/config"
	"github.com/vigilhq/vigil/fetch"
	"github.com/vigilhq/vigil/media"
	"github.com/vigilhq/vigil/metrics"
	"github.com/vigilhq/vigil/monitor"
	"github.com/vigilhq/vigil/notify"
	"github.com/vigilhq/vigil/render"
	"github.com/vigilhq/vigil/store"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

type options struct {
	configPath    string
	competitor    string
	crawlOnly     bool
	noScreenshots bool
	dryRun        bool
	serve         bool
	logLevel      string
	logFormat     string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "vigil.yaml", "path to the configuration file")
	flag.StringVar(&opts.competitor, "competitor", "", "run a single configured competitor instead of all")
	flag.BoolVar(&opts.crawlOnly, "crawl-only", false, "capture snapshots without diffing or notifying")
	flag.BoolVar(&opts.noScreenshots, "no-screenshots", false, "skip screenshot capture for this run")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "build the report but log it instead of delivering")
	flag.BoolVar(&opts.serve, "serve", false, "start the HTTP API instead of a one-shot run")
	flag.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flag.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	flag.Parse()

	logger := newLogger(opts.logLevel, opts.logFormat)
	slog.SetDefault(logger)

	if err := run(opts, logger); err != nil {
		logger.Error("vigil failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options, logger *slog.Logger) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.ApplySchema(db); err != nil {
		return err
	}
	st := store.NewStore(db)

	fetcher := fetch.New(fetch.Config{
		Delay:      cfg.Crawl.RequestDelay,
		Timeout:    cfg.Crawl.Timeout,
		MaxBytes:   cfg.Crawl.MaxBodyBytes,
		MaxTextLen: cfg.Crawl.MaxTextLen,
		UserAgent:  cfg.Crawl.UserAgent,
	})

	svcOpts := []monitor.Option{
		monitor.WithMetrics(metrics.New(nil)),
		monitor.WithLogger(logger),
	}

	var chrome *render.Chrome
	if cfg.Screenshots.Enabled {
		chrome = render.NewChrome(render.Config{
			Dir:             cfg.Screenshots.Dir,
			Width:           cfg.Screenshots.Width,
			Height:          cfg.Screenshots.Height,
			FullPage:        cfg.Screenshots.FullPage,
			PagesPerBrowser: cfg.Screenshots.PagesPerBrowser,
			NavigateTimeout: cfg.Screenshots.Timeout,
			Logger:          logger,
		})
		defer chrome.Close()
		svcOpts = append(svcOpts, monitor.WithRenderer(chrome))
	}

	if cfg.Notify.SlackWebhookURL != "" {
		svcOpts = append(svcOpts, monitor.WithNotifier(notify.NewSlack(notify.SlackConfig{
			WebhookURL: cfg.Notify.SlackWebhookURL,
			Timeout:    cfg.Notify.Timeout,
			MaxRetries: cfg.Notify.MaxRetries,
			Logger:     logger,
		})))
	} else {
		logger.Warn("no slack webhook configured, reports will not be delivered")
	}

	if cfg.Media.Enabled {
		sources := make([]media.Source, len(cfg.Media.Sites))
		for i, site := range cfg.Media.Sites {
			sources[i] = media.Source{
				Name:     site.Name,
				URL:      site.URL,
				Category: site.Category,
				Browser:  site.Browser,
			}
		}
		// A nil *Chrome must stay out of the interface, otherwise the
		// scanner sees a non-nil loader and dereferences it.
		var loader media.PageLoader
		if chrome != nil {
			loader = chrome
		}
		svcOpts = append(svcOpts, monitor.WithScanner(media.NewScanner(st, media.Config{
			Sources:   sources,
			Terms:     cfg.Media.Terms,
			Delay:     cfg.Crawl.RequestDelay,
			UserAgent: cfg.Crawl.UserAgent,
			Loader:    loader,
			Logger:    logger,
		})))
	}

	svc := monitor.New(cfg, st, fetcher, svcOpts...)

	if opts.serve {
		return serve(ctx, cfg, st, svc, logger)
	}

	sum, err := svc.Run(ctx, monitor.RunOptions{
		Competitor:    opts.competitor,
		CrawlOnly:     opts.crawlOnly,
		NoScreenshots: opts.noScreenshots,
		DryRun:        opts.dryRun,
	})
	if err != nil {
		return err
	}

	for _, re := range sum.Errors {
		logger.Warn("isolated failure",
			"competitor", re.Competitor, "stage", re.Stage, "error", re.Message)
	}
	logger.Info("run complete",
		"run", sum.ID,
		"competitors", len(sum.Competitors),
		"pages", sum.TotalPages(),
		"changes", sum.TotalChanges(),
		"mentions", len(sum.Mentions),
		"errors", len(sum.Errors))
	return nil
}

// serve runs the HTTP API until the process is signalled, then drains
// in-flight requests.
func serve(ctx context.Context, cfg *config.Config, st *store.Store, svc *monitor.Service, logger *slog.Logger) error {
	srv := api.New(cfg, st, svc, api.WithLogger(logger))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
