package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vigilhq/vigil/monitor"
	"github.com/vigilhq/vigil/snapshot"
	"github.com/vigilhq/vigil/store"
)

// competitorInfo is one configured competitor joined with its latest
// snapshot, when one exists.
type competitorInfo struct {
	Name       string     `json:"name"`
	Website    string     `json:"website"`
	Tier       string     `json:"tier,omitempty"`
	SnapshotID string     `json:"snapshot_id,omitempty"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
	Pages      int        `json:"pages,omitempty"`
}

// snapshotSummary is a snapshot without page text or markdown; those run to
// megabytes across a site and stay out of API responses.
type snapshotSummary struct {
	Competitor string        `json:"competitor"`
	Homepage   string        `json:"homepage"`
	CapturedAt time.Time     `json:"captured_at"`
	Pages      []pageSummary `json:"pages"`
}

type pageSummary struct {
	URL           string    `json:"url"`
	Depth         int       `json:"depth"`
	Status        string    `json:"status"`
	StatusCode    int       `json:"status_code,omitempty"`
	ContentHash   string    `json:"content_hash,omitempty"`
	IsPricing     bool      `json:"is_pricing,omitempty"`
	ScreenshotRef string    `json:"screenshot_ref,omitempty"`
	Error         string    `json:"error,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
}

type runRequest struct {
	Competitor    string `json:"competitor"`
	CrawlOnly     bool   `json:"crawl_only"`
	NoScreenshots bool   `json:"no_screenshots"`
	DryRun        bool   `json:"dry_run"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.log.Error("health check failed", "component", "store", "error", err)
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"store": "unhealthy"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"store": "healthy"})
}

func (s *Server) handleCompetitors(w http.ResponseWriter, r *http.Request) {
	meta, err := s.store.LatestMeta(r.Context())
	if err != nil {
		s.log.Error("snapshot meta lookup failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "snapshot lookup failed")
		return
	}
	byName := make(map[string]store.SnapshotMeta, len(meta))
	for _, m := range meta {
		byName[m.Competitor] = m
	}

	out := make([]competitorInfo, 0, len(s.cfg.Competitors))
	for _, c := range s.cfg.Competitors {
		info := competitorInfo{Name: c.Name, Website: c.Website, Tier: c.Tier}
		if m, ok := byName[c.Name]; ok {
			captured := m.CapturedAt
			info.SnapshotID = m.ID
			info.CapturedAt = &captured
			info.Pages = m.Pages
		}
		out = append(out, info)
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := s.cfg.Competitor(name); !ok {
		s.respondError(w, http.StatusNotFound, "unknown competitor: "+name)
		return
	}

	snap, err := s.store.LoadLatest(r.Context(), name)
	if err == nil && snap == nil {
		err = store.ErrNoSnapshot
	}
	if err != nil {
		if errors.Is(err, store.ErrNoSnapshot) {
			s.respondError(w, http.StatusNotFound, "no snapshot captured yet")
			return
		}
		s.log.Error("snapshot load failed", "competitor", name, "error", err)
		s.respondError(w, http.StatusInternalServerError, "snapshot lookup failed")
		return
	}

	s.respondJSON(w, http.StatusOK, summarize(snap))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	body := http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(body).Decode(&req); err != nil && err != io.EOF {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.runner.StartRun(monitor.RunOptions{
		Competitor:    req.Competitor,
		CrawlOnly:     req.CrawlOnly,
		NoScreenshots: req.NoScreenshots,
		DryRun:        req.DryRun,
	})
	switch {
	case errors.Is(err, monitor.ErrRunInFlight):
		s.respondError(w, http.StatusConflict, "a run is already in flight")
		return
	case errors.Is(err, monitor.ErrUnknownCompetitor):
		s.respondError(w, http.StatusNotFound, "unknown competitor: "+req.Competitor)
		return
	case err != nil:
		s.log.Error("run trigger failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "run trigger failed")
		return
	}

	s.log.Info("run triggered", "run_id", id, "crawl_only", req.CrawlOnly, "dry_run", req.DryRun)
	s.respondJSON(w, http.StatusAccepted, map[string]string{"run_id": id})
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.LatestRun(r.Context())
	if err != nil {
		s.log.Error("run lookup failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "run lookup failed")
		return
	}
	if rec == nil {
		s.respondError(w, http.StatusNotFound, "no runs recorded")
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func summarize(snap *snapshot.SiteSnapshot) snapshotSummary {
	sum := snapshotSummary{
		Competitor: snap.Competitor,
		Homepage:   snap.Homepage,
		CapturedAt: snap.CapturedAt,
		Pages:      make([]pageSummary, 0, len(snap.Pages)),
	}
	for i := range snap.Pages {
		p := &snap.Pages[i]
		sum.Pages = append(sum.Pages, pageSummary{
			URL:           p.URL,
			Depth:         p.Depth,
			Status:        string(p.Status),
			StatusCode:    p.StatusCode,
			ContentHash:   p.ContentHash,
			IsPricing:     p.IsPricing,
			ScreenshotRef: p.ScreenshotRef,
			Error:         p.Error,
			FetchedAt:     p.FetchedAt,
		})
	}
	return sum
}

func (s *Server) respondError(w http.ResponseWriter, code int, message string) {
	s.respondJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("response encoding failed", "error", err)
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}
