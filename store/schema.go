package store

import "database/sql"

// Schema is the complete vigil schema. All timestamps are Unix
// milliseconds.
const Schema = `
-- One row per crawl snapshot of one competitor
CREATE TABLE IF NOT EXISTS snapshots (
    id          TEXT PRIMARY KEY,
    competitor  TEXT NOT NULL,
    homepage    TEXT NOT NULL DEFAULT '',
    captured_at INTEGER NOT NULL,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_competitor ON snapshots(competitor, captured_at DESC);

-- Pages belonging to a snapshot, in crawl order (seq)
CREATE TABLE IF NOT EXISTS pages (
    snapshot_id    TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
    seq            INTEGER NOT NULL,
    url            TEXT NOT NULL,
    depth          INTEGER NOT NULL DEFAULT 0,
    status         TEXT NOT NULL,
    status_code    INTEGER NOT NULL DEFAULT 0,
    content_hash   TEXT NOT NULL DEFAULT '',
    text_content   TEXT NOT NULL DEFAULT '',
    markdown       TEXT NOT NULL DEFAULT '',
    screenshot_ref TEXT NOT NULL DEFAULT '',
    is_pricing     INTEGER NOT NULL DEFAULT 0,
    error          TEXT NOT NULL DEFAULT '',
    fetched_at     INTEGER NOT NULL,
    PRIMARY KEY (snapshot_id, url)
);
CREATE INDEX IF NOT EXISTS idx_pages_snapshot ON pages(snapshot_id, seq);

-- One row per monitoring run (observability)
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    started_at  INTEGER NOT NULL,
    finished_at INTEGER NOT NULL,
    competitors INTEGER NOT NULL DEFAULT 0,
    pages       INTEGER NOT NULL DEFAULT 0,
    changes     INTEGER NOT NULL DEFAULT 0,
    errors_json TEXT NOT NULL DEFAULT '[]',
    dry_run     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_time ON runs(started_at DESC);

-- Media mentions already reported, for week-over-week novelty
CREATE TABLE IF NOT EXISTS media_mentions (
    site        TEXT NOT NULL,
    term        TEXT NOT NULL,
    article_url TEXT NOT NULL,
    title       TEXT NOT NULL DEFAULT '',
    seen_at     INTEGER NOT NULL,
    PRIMARY KEY (site, term, article_url)
);
CREATE INDEX IF NOT EXISTS idx_mentions_time ON media_mentions(seen_at DESC);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
