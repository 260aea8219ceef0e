package store

import (
	"context"
	"fmt"
	"time"
)

// Mention is one article seen on a media site that matched a watched term.
type Mention struct {
	Site       string    `json:"site"`
	Term       string    `json:"term"`
	ArticleURL string    `json:"article_url"`
	Title      string    `json:"title"`
	SeenAt     time.Time `json:"seen_at"`
}

// RecordMention stores a mention and reports whether it was new. Replays
// of an already-seen (site, term, article) triple are absorbed silently so
// scans stay idempotent.
func (s *Store) RecordMention(ctx context.Context, site, term, articleURL, title string, seenAt time.Time) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO media_mentions (site, term, article_url, title, seen_at)
		VALUES (?, ?, ?, ?, ?)`,
		site, term, articleURL, title, seenAt.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("record mention: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecentMentions returns up to limit mentions, newest first.
func (s *Store) RecentMentions(ctx context.Context, limit int) ([]Mention, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT site, term, article_url, title, seen_at
		FROM media_mentions ORDER BY seen_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent mentions: %w", err)
	}
	defer rows.Close()

	var mentions []Mention
	for rows.Next() {
		var (
			m  Mention
			ms int64
		)
		if err := rows.Scan(&m.Site, &m.Term, &m.ArticleURL, &m.Title, &ms); err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		m.SeenAt = time.UnixMilli(ms).UTC()
		mentions = append(mentions, m)
	}
	return mentions, rows.Err()
}
