// Package store persists scored iterations to a SQLite snapshot database:
// one row per snapshot, trend, and contributing item, with retention
// pruning and periodic compaction.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/snapetech/trendmonitor/internal/analysis"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	generated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS trends (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	snapshot_id INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	keyword TEXT NOT NULL,
	score REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trends_snapshot_id ON trends(snapshot_id);
CREATE TABLE IF NOT EXISTS trend_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trend_id INTEGER NOT NULL REFERENCES trends(id) ON DELETE CASCADE,
	title TEXT,
	url TEXT,
	published TEXT,
	summary TEXT
);
CREATE INDEX IF NOT EXISTS idx_trend_items_trend_id ON trend_items(trend_id);
`

// Store is a transactional SQLite-backed snapshot store. Safe for
// concurrent Save calls; each save is serialised under a mutex so the
// vacuum-every-N-saves counter stays consistent.
type Store struct {
	db          *sql.DB
	retention   time.Duration
	vacuumEvery int

	mu        sync.Mutex
	saveCount int
}

// Open opens (creating if necessary) the SQLite file at path and ensures
// the schema exists, creating path's parent directory first if it doesn't
// already exist (modernc.org/sqlite does not do this itself). retention <=
// 0 disables snapshot pruning. vacuumEvery <= 0 uses the default of 500
// saves between compactions.
func Open(path string, retention time.Duration, vacuumEvery int) (*Store, error) {
	if vacuumEvery <= 0 {
		vacuumEvery = 500
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create storage directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &Store{db: db, retention: retention, vacuumEvery: vacuumEvery}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists one iteration's trends as a single transaction: the
// snapshot row, then each trend and its items, then retention pruning.
// Every vacuumEvery successful saves, runs a compaction in its own
// transaction afterward.
func (s *Store) Save(ctx context.Context, trends []analysis.Trend, generatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	generatedAtStr := generatedAt.UTC().Truncate(time.Second).Format(time.RFC3339)
	res, err := tx.ExecContext(ctx, "INSERT INTO snapshots (generated_at) VALUES (?)", generatedAtStr)
	if err != nil {
		return fmt.Errorf("store: insert snapshot: %w", err)
	}
	snapshotID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: snapshot id: %w", err)
	}

	for _, trend := range trends {
		tres, err := tx.ExecContext(ctx,
			"INSERT INTO trends (snapshot_id, keyword, score) VALUES (?, ?, ?)",
			snapshotID, trend.Keyword, trend.Score)
		if err != nil {
			return fmt.Errorf("store: insert trend %q: %w", trend.Keyword, err)
		}
		trendID, err := tres.LastInsertId()
		if err != nil {
			return fmt.Errorf("store: trend id: %w", err)
		}
		for _, item := range trend.Items {
			publishedStr := item.Published.UTC().Truncate(time.Second).Format(time.RFC3339)
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO trend_items (trend_id, title, url, published, summary) VALUES (?, ?, ?, ?, ?)",
				trendID, item.Title, item.URL, publishedStr, item.Summary); err != nil {
				return fmt.Errorf("store: insert item %q: %w", item.Title, err)
			}
		}
	}

	if s.retention > 0 {
		cutoff := generatedAt.UTC().Add(-s.retention).Format(time.RFC3339)
		if _, err := tx.ExecContext(ctx, "DELETE FROM snapshots WHERE generated_at < ?", cutoff); err != nil {
			return fmt.Errorf("store: prune snapshots: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}

	s.saveCount++
	if s.saveCount%s.vacuumEvery == 0 {
		if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("store: vacuum: %w", err)
		}
	}
	return nil
}
