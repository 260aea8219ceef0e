package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vigilhq/vigil/idgen"
	"github.com/vigilhq/vigil/snapshot"
)

// SnapshotMeta is the summary row for one stored snapshot.
type SnapshotMeta struct {
	ID         string    `json:"id"`
	Competitor string    `json:"competitor"`
	CapturedAt time.Time `json:"captured_at"`
	Pages      int       `json:"pages"`
}

// SaveSnapshot persists a snapshot and its pages atomically and returns the
// snapshot id. Snapshots are immutable; there is no update path.
func (s *Store) SaveSnapshot(ctx context.Context, snap *snapshot.SiteSnapshot) (string, error) {
	id := idgen.Default()
	now := time.Now().UnixMilli()

	err := RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (id, competitor, homepage, captured_at, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			id, snap.Competitor, snap.Homepage, snap.CapturedAt.UnixMilli(), now,
		); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		for i := range snap.Pages {
			p := &snap.Pages[i]
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO pages (snapshot_id, seq, url, depth, status, status_code,
				content_hash, text_content, markdown, screenshot_ref, is_pricing, error, fetched_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, i, p.URL, p.Depth, string(p.Status), p.StatusCode,
				p.ContentHash, p.Text, p.Markdown, p.ScreenshotRef, p.IsPricing, p.Error,
				p.FetchedAt.UnixMilli(),
			); err != nil {
				return fmt.Errorf("insert page %s: %w", p.URL, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// LoadLatest returns the most recent snapshot for a competitor, or (nil,
// nil) when none exists yet. First run is a state, not an error.
func (s *Store) LoadLatest(ctx context.Context, competitor string) (*snapshot.SiteSnapshot, error) {
	var (
		id         string
		homepage   string
		capturedAt int64
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, homepage, captured_at FROM snapshots
		WHERE competitor = ? ORDER BY captured_at DESC, created_at DESC LIMIT 1`,
		competitor,
	).Scan(&id, &homepage, &capturedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}

	snap := &snapshot.SiteSnapshot{
		Competitor: competitor,
		Homepage:   homepage,
		CapturedAt: time.UnixMilli(capturedAt).UTC(),
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT url, depth, status, status_code, content_hash, text_content,
		markdown, screenshot_ref, is_pricing, error, fetched_at
		FROM pages WHERE snapshot_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p         snapshot.PageRecord
			status    string
			fetchedAt int64
		)
		if err := rows.Scan(&p.URL, &p.Depth, &status, &p.StatusCode, &p.ContentHash,
			&p.Text, &p.Markdown, &p.ScreenshotRef, &p.IsPricing, &p.Error, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		p.Status = snapshot.PageStatus(status)
		p.FetchedAt = time.UnixMilli(fetchedAt).UTC()
		snap.Pages = append(snap.Pages, p)
	}
	return snap, rows.Err()
}

// Prune deletes all but the newest keep snapshots for a competitor and
// returns how many were removed. Pages go with them via cascade.
func (s *Store) Prune(ctx context.Context, competitor string, keep int) (int, error) {
	if keep < 1 {
		return 0, fmt.Errorf("prune: keep must be >= 1, got %d", keep)
	}
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM snapshots WHERE competitor = ? AND id NOT IN (
			SELECT id FROM snapshots WHERE competitor = ?
			ORDER BY captured_at DESC, created_at DESC LIMIT ?
		)`,
		competitor, competitor, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// LatestMeta summarises the most recent snapshot per competitor, newest
// first. Competitors with no snapshots yet are simply absent.
func (s *Store) LatestMeta(ctx context.Context) ([]SnapshotMeta, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT s.id, s.competitor, s.captured_at,
			(SELECT COUNT(*) FROM pages p WHERE p.snapshot_id = s.id)
		FROM snapshots s
		WHERE s.captured_at = (
			SELECT MAX(captured_at) FROM snapshots WHERE competitor = s.competitor
		)
		GROUP BY s.competitor
		ORDER BY s.captured_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("latest meta: %w", err)
	}
	defer rows.Close()

	var metas []SnapshotMeta
	for rows.Next() {
		var (
			m  SnapshotMeta
			ms int64
		)
		if err := rows.Scan(&m.ID, &m.Competitor, &ms, &m.Pages); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		m.CapturedAt = time.UnixMilli(ms).UTC()
		metas = append(metas, m)
	}
	return metas, rows.Err()
}
