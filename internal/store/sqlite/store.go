// Package sqlite persists highlights in a single SQLite file.
//
// It uses the pure-Go modernc.org/sqlite driver so the binary stays
// CGO-free. Highlights are stored as JSON documents keyed by (url, id);
// a pages table mirrors the page index kept by the other backends.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/MrSnakeDoc/hilite/internal/domain"
	"github.com/MrSnakeDoc/hilite/internal/logger"
	"github.com/MrSnakeDoc/hilite/internal/store"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	url        TEXT PRIMARY KEY,
	first_seen INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS highlights (
	url        TEXT NOT NULL,
	id         TEXT NOT NULL,
	category   TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (url, id)
);
CREATE INDEX IF NOT EXISTS idx_highlights_category ON highlights(category);
`

// Store is a HighlightStore backed by SQLite.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

var _ store.HighlightStore = (*Store)(nil)

// Open opens (and creates if needed) the database at path and applies the
// schema. Records that no longer decode are logged on log and skipped.
func Open(path string, log logger.Logger) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, logger: log}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetHighlights returns the highlights of a page, oldest first.
func (s *Store) GetHighlights(ctx context.Context, url string) ([]*domain.Highlight, error) {
	key := domain.NormalizeURL(url)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM highlights WHERE url = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get highlights: %w", err)
	}
	defer rows.Close()

	highlights := make([]*domain.Highlight, 0)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan highlight: %w", err)
		}
		h, err := decode(data)
		if err != nil {
			s.skipped(key, id, err)
			continue
		}
		highlights = append(highlights, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read highlights: %w", err)
	}
	domain.SortByCreation(highlights)

	return highlights, nil
}

// SaveHighlight stores a new highlight; an existing ID on the page is rejected.
func (s *Store) SaveHighlight(ctx context.Context, h *domain.Highlight) error {
	cp := *h
	cp.URL = domain.NormalizeURL(h.URL)
	if err := cp.Validate(); err != nil {
		return err
	}
	data, err := encode(&cp)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO highlights (url, id, category, created_at, data) VALUES (?, ?, ?, ?, ?)`,
			cp.URL, cp.ID, cp.Category, cp.CreatedAt.UnixNano(), data)
		if err != nil {
			return fmt.Errorf("failed to save highlight: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", store.ErrDuplicate, cp.ID)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO pages (url, first_seen) VALUES (?, ?)`,
			cp.URL, cp.CreatedAt.Unix()); err != nil {
			return fmt.Errorf("failed to index page: %w", err)
		}
		return nil
	})
}

// UpdateHighlight applies patch to a stored highlight.
func (s *Store) UpdateHighlight(ctx context.Context, url string, patch domain.HighlightPatch) (*domain.Highlight, error) {
	key := domain.NormalizeURL(url)

	var updated *domain.Highlight
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var data string
		err := tx.QueryRowContext(ctx,
			`SELECT data FROM highlights WHERE url = ? AND id = ?`, key, patch.ID).Scan(&data)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: %s", store.ErrNotFound, patch.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to get highlight: %w", err)
		}

		h, err := decode(data)
		if err != nil {
			return err
		}
		patch.Apply(h)
		if err := writeBack(ctx, tx, h); err != nil {
			return err
		}
		updated = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteHighlight removes a highlight and returns the remaining ones.
// The page row stays until the next sweep.
func (s *Store) DeleteHighlight(ctx context.Context, url, id string) ([]*domain.Highlight, error) {
	key := domain.NormalizeURL(url)

	res, err := s.db.ExecContext(ctx, `DELETE FROM highlights WHERE url = ? AND id = ?`, key, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete highlight: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}

	return s.GetHighlights(ctx, key)
}

// ClearPage removes every highlight of a page along with its page row.
func (s *Store) ClearPage(ctx context.Context, url string) (int, error) {
	key := domain.NormalizeURL(url)

	var n int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM highlights WHERE url = ?`, key)
		if err != nil {
			return fmt.Errorf("failed to clear page: %w", err)
		}
		n, _ = res.RowsAffected()
		if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE url = ?`, key); err != nil {
			return fmt.Errorf("failed to remove page: %w", err)
		}
		return nil
	})
	return int(n), err
}

// ResetCategory moves all highlights of category to the uncategorized sentinel.
func (s *Store) ResetCategory(ctx context.Context, category string) (int, error) {
	if category == "" || category == domain.UncategorizedCategory {
		return 0, nil
	}

	count := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT url, id, data FROM highlights WHERE category = ?`, category)
		if err != nil {
			return fmt.Errorf("failed to list category: %w", err)
		}
		var matched []*domain.Highlight
		for rows.Next() {
			var url, id, data string
			if err := rows.Scan(&url, &id, &data); err != nil {
				_ = rows.Close()
				return fmt.Errorf("failed to scan highlight: %w", err)
			}
			h, err := decode(data)
			if err != nil {
				s.skipped(url, id, err)
				continue
			}
			matched = append(matched, h)
		}
		if err := rows.Close(); err != nil {
			return err
		}

		uncategorized := domain.UncategorizedCategory
		for _, h := range matched {
			domain.HighlightPatch{Category: &uncategorized}.Apply(h)
			if err := writeBack(ctx, tx, h); err != nil {
				return err
			}
		}
		count = len(matched)
		return nil
	})
	return count, err
}

// Pages lists every indexed page URL.
func (s *Store) Pages(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM pages ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// SweepPages removes page rows without highlights.
func (s *Store) SweepPages(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM pages WHERE NOT EXISTS (SELECT 1 FROM highlights h WHERE h.url = pages.url)`)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep pages: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func writeBack(ctx context.Context, tx *sql.Tx, h *domain.Highlight) error {
	data, err := encode(h)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE highlights SET data = ?, category = ? WHERE url = ? AND id = ?`,
		data, h.Category, h.URL, h.ID); err != nil {
		return fmt.Errorf("failed to update highlight %s: %w", h.ID, err)
	}
	return nil
}

func encode(h *domain.Highlight) (string, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("failed to marshal highlight %s: %w", h.ID, err)
	}
	return string(data), nil
}

func (s *Store) skipped(url, id string, err error) {
	s.logger.Warn("skipping undecodable highlight",
		logger.String("url", url),
		logger.String("highlight_id", id),
		logger.Error(err))
}

func decode(data string) (*domain.Highlight, error) {
	var h domain.Highlight
	if err := json.Unmarshal([]byte(data), &h); err != nil {
		return nil, fmt.Errorf("failed to unmarshal highlight: %w", err)
	}
	return &h, nil
}
