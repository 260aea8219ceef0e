package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vigilhq/vigil/idgen"
)

// RunRecord is the durable trace of one monitoring run.
type RunRecord struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Competitors int       `json:"competitors"`
	Pages       int       `json:"pages"`
	Changes     int       `json:"changes"`
	Errors      []string  `json:"errors,omitempty"`
	DryRun      bool      `json:"dry_run,omitempty"`
}

// RecordRun stores the outcome of a run and returns its id.
func (s *Store) RecordRun(ctx context.Context, rec *RunRecord) (string, error) {
	id := rec.ID
	if id == "" {
		id = idgen.Default()
	}
	errs := rec.Errors
	if errs == nil {
		errs = []string{}
	}
	blob, err := json.Marshal(errs)
	if err != nil {
		return "", fmt.Errorf("encode run errors: %w", err)
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, competitors, pages, changes, errors_json, dry_run)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli(),
		rec.Competitors, rec.Pages, rec.Changes, string(blob), rec.DryRun,
	)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return id, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, started_at, finished_at, competitors, pages, changes, errors_json, dry_run
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// LatestRun returns the most recent run, or (nil, nil) when none exists.
func (s *Store) LatestRun(ctx context.Context) (*RunRecord, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, competitors, pages, changes, errors_json, dry_run
		FROM runs ORDER BY started_at DESC LIMIT 1`)
	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		rec        RunRecord
		startedAt  int64
		finishedAt int64
		errsJSON   string
	)
	err := row.Scan(&rec.ID, &startedAt, &finishedAt,
		&rec.Competitors, &rec.Pages, &rec.Changes, &errsJSON, &rec.DryRun)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	rec.StartedAt = time.UnixMilli(startedAt).UTC()
	rec.FinishedAt = time.UnixMilli(finishedAt).UTC()
	if errsJSON != "" {
		if err := json.Unmarshal([]byte(errsJSON), &rec.Errors); err != nil {
			return nil, fmt.Errorf("decode run errors: %w", err)
		}
	}
	if len(rec.Errors) == 0 {
		rec.Errors = nil
	}
	return &rec, nil
}
