package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vigilhq/vigil/config"
	"github.com/vigilhq/vigil/metrics"
	"github.com/vigilhq/vigil/monitor"
	"github.com/vigilhq/vigil/snapshot"
	"github.com/vigilhq/vigil/store"
)

type fakeStore struct {
	pingErr error
	meta    []store.SnapshotMeta
	metaErr error
	snaps   map[string]*snapshot.SiteSnapshot
	loadErr error
	run     *store.RunRecord
	runErr  error
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) LatestMeta(context.Context) ([]store.SnapshotMeta, error) {
	return f.meta, f.metaErr
}

func (f *fakeStore) LoadLatest(_ context.Context, competitor string) (*snapshot.SiteSnapshot, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.snaps[competitor], nil
}

func (f *fakeStore) LatestRun(context.Context) (*store.RunRecord, error) {
	return f.run, f.runErr
}

type fakeRunner struct {
	id   string
	err  error
	opts []monitor.RunOptions
}

func (f *fakeRunner) StartRun(opts monitor.RunOptions) (string, error) {
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return "", f.err
	}
	return f.id, nil
}

func testServer(t *testing.T, st Store, runner Runner) *Server {
	t.Helper()
	cfg, err := config.Parse([]byte(`
competitors:
  - name: acme
    website: https://acme.example
    tier: Tier 1
  - name: globex
    website: https://globex.example
`))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return New(cfg, st, runner, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	// WHAT: Health reflects store reachability: 200 when it pings, 503
	// when it does not.
	s := testServer(t, &fakeStore{}, &fakeRunner{})
	rec := do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: %q", ct)
	}

	down := testServer(t, &fakeStore{pingErr: errors.New("locked")}, &fakeRunner{})
	if rec := do(t, down, http.MethodGet, "/healthz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("got %d, want 503", rec.Code)
	}
}

func TestCompetitors_JoinsLatestMeta(t *testing.T) {
	// WHAT: Every configured competitor is listed; those with a snapshot
	// carry its id, capture time, and page count.
	captured := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)
	st := &fakeStore{meta: []store.SnapshotMeta{{
		ID:         "snap-1",
		Competitor: "acme",
		CapturedAt: captured,
		Pages:      12,
	}}}
	s := testServer(t, st, &fakeRunner{})

	rec := do(t, s, http.MethodGet, "/api/competitors", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	var got []competitorInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d competitors, want 2", len(got))
	}
	if got[0].Name != "acme" || got[0].SnapshotID != "snap-1" || got[0].Pages != 12 {
		t.Errorf("acme entry: %+v", got[0])
	}
	if got[0].CapturedAt == nil || !got[0].CapturedAt.Equal(captured) {
		t.Errorf("acme captured_at: %v", got[0].CapturedAt)
	}
	if got[1].Name != "globex" || got[1].SnapshotID != "" || got[1].CapturedAt != nil {
		t.Errorf("globex should have no snapshot fields: %+v", got[1])
	}
}

func TestSnapshot_Summary(t *testing.T) {
	// WHAT: The snapshot endpoint returns page metadata without the page
	// text.
	st := &fakeStore{snaps: map[string]*snapshot.SiteSnapshot{
		"acme": {
			Competitor: "acme",
			Homepage:   "https://acme.example",
			CapturedAt: time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC),
			Pages: []snapshot.PageRecord{
				{URL: "https://acme.example", Status: snapshot.StatusOK, StatusCode: 200, Text: "a very long body"},
				{URL: "https://acme.example/pricing", Status: snapshot.StatusOK, StatusCode: 200, IsPricing: true},
			},
		},
	}}
	s := testServer(t, st, &fakeRunner{})

	rec := do(t, s, http.MethodGet, "/api/competitors/acme/snapshot", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var got snapshotSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Competitor != "acme" || len(got.Pages) != 2 {
		t.Fatalf("summary: %+v", got)
	}
	if !got.Pages[1].IsPricing {
		t.Error("pricing flag should survive summarizing")
	}
	if strings.Contains(rec.Body.String(), "a very long body") {
		t.Error("page text must not appear in API responses")
	}
}

func TestSnapshot_NotFound(t *testing.T) {
	// WHAT: A known competitor without a snapshot and an unknown name both
	// 404, with distinct messages.
	s := testServer(t, &fakeStore{}, &fakeRunner{})

	rec := do(t, s, http.MethodGet, "/api/competitors/acme/snapshot", "")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "no snapshot") {
		t.Errorf("no-snapshot case: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/api/competitors/nonesuch/snapshot", "")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "unknown competitor") {
		t.Errorf("unknown-competitor case: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRunTrigger_Accepted(t *testing.T) {
	// WHAT: POST /api/run hands the flags to the runner and returns 202
	// with the run id.
	runner := &fakeRunner{id: "run-123"}
	s := testServer(t, &fakeStore{}, runner)

	rec := do(t, s, http.MethodPost, "/api/run", `{"dry_run":true,"crawl_only":true}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("got %d, want 202: %s", rec.Code, rec.Body.String())
	}
	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["run_id"] != "run-123" {
		t.Errorf("run_id: %q", got["run_id"])
	}
	if len(runner.opts) != 1 || !runner.opts[0].DryRun || !runner.opts[0].CrawlOnly {
		t.Errorf("runner opts: %+v", runner.opts)
	}
}

func TestRunTrigger_EmptyBody(t *testing.T) {
	// WHAT: An empty body is a full default run, not a bad request.
	runner := &fakeRunner{id: "run-124"}
	s := testServer(t, &fakeStore{}, runner)

	rec := do(t, s, http.MethodPost, "/api/run", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("got %d, want 202: %s", rec.Code, rec.Body.String())
	}
	if len(runner.opts) != 1 || runner.opts[0] != (monitor.RunOptions{}) {
		t.Errorf("runner opts: %+v", runner.opts)
	}
}

func TestRunTrigger_Conflict(t *testing.T) {
	// WHAT: An in-flight run maps to 409.
	runner := &fakeRunner{err: monitor.ErrRunInFlight}
	s := testServer(t, &fakeStore{}, runner)

	if rec := do(t, s, http.MethodPost, "/api/run", ""); rec.Code != http.StatusConflict {
		t.Errorf("got %d, want 409", rec.Code)
	}
}

func TestRunTrigger_UnknownCompetitor(t *testing.T) {
	// WHAT: A runner rejection for an unknown competitor maps to 404.
	runner := &fakeRunner{err: fmt.Errorf("%w: %q", monitor.ErrUnknownCompetitor, "nonesuch")}
	s := testServer(t, &fakeStore{}, runner)

	rec := do(t, s, http.MethodPost, "/api/run", `{"competitor":"nonesuch"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("got %d, want 404: %s", rec.Code, rec.Body.String())
	}
}

func TestRunTrigger_BadBody(t *testing.T) {
	// WHAT: Malformed JSON is rejected before the runner is touched.
	runner := &fakeRunner{id: "run-125"}
	s := testServer(t, &fakeStore{}, runner)

	if rec := do(t, s, http.MethodPost, "/api/run", `{not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", rec.Code)
	}
	if len(runner.opts) != 0 {
		t.Errorf("runner should not be called: %+v", runner.opts)
	}
}

func TestLatestRun(t *testing.T) {
	// WHAT: The latest run record is returned as stored; none yet is 404.
	s := testServer(t, &fakeStore{}, &fakeRunner{})
	if rec := do(t, s, http.MethodGet, "/api/runs/latest", ""); rec.Code != http.StatusNotFound {
		t.Errorf("got %d, want 404", rec.Code)
	}

	stored := &store.RunRecord{
		ID:          "run-9",
		StartedAt:   time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC),
		FinishedAt:  time.Date(2026, 3, 14, 6, 4, 0, 0, time.UTC),
		Competitors: 2,
		Pages:       31,
		Changes:     4,
	}
	s2 := testServer(t, &fakeStore{run: stored}, &fakeRunner{})
	rec := do(t, s2, http.MethodGet, "/api/runs/latest", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	var got store.RunRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "run-9" || got.Pages != 31 || got.Changes != 4 {
		t.Errorf("record: %+v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	// WHAT: /metrics exposes the injected registry in Prometheus text
	// format.
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.IncRun(metrics.RunOK)

	cfg, err := config.Parse([]byte(`
competitors:
  - name: acme
    website: https://acme.example
`))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	s := New(cfg, &fakeStore{}, &fakeRunner{},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithGatherer(reg))

	rec := do(t, s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "vigil_runs_total") {
		t.Errorf("metrics body should carry vigil counters: %.200s", rec.Body.String())
	}
}
