// Package history keeps an audit log of launched deployments in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/derafu/github/internal/apperror"
	"github.com/derafu/github/internal/deploy"
)

// DefaultLimit is the number of entries Recent returns when limit <= 0.
const DefaultLimit = 20

// Store records deployments. It satisfies deploy.Recorder.
type Store struct {
	db *sql.DB
}

// Record is a stored deployment.
type Record struct {
	ID string
	deploy.Entry
}

// Open opens (and creates if needed) the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, apperror.Config("deploy.history path is empty")
	}
	if err := requireLocalDisk(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS deployments (
  id          TEXT PRIMARY KEY,
  delivery_id TEXT,
  site        TEXT NOT NULL,
  repository  TEXT NOT NULL,
  branch      TEXT NOT NULL,
  workflow    TEXT NOT NULL,
  actor       TEXT,
  command     TEXT NOT NULL,
  mode        TEXT NOT NULL,
  exit_code   INTEGER NOT NULL,
  created_at  TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS deployments_created_at_idx ON deployments(created_at);`,
		`CREATE INDEX IF NOT EXISTS deployments_site_idx ON deployments(site, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap history: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a deployment entry.
func (s *Store) Record(ctx context.Context, e deploy.Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO deployments(id, delivery_id, site, repository, branch, workflow, actor, command, mode, exit_code, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		uuid.NewString(),
		e.DeliveryID,
		e.Site,
		e.Repository,
		e.Branch,
		e.Workflow,
		e.Actor,
		e.Command,
		e.Mode,
		e.ExitCode,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert deployment: %w", err)
	}
	return nil
}

// Recent returns the latest deployments, newest first. An empty site lists
// every site.
func (s *Store) Recent(ctx context.Context, site string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, delivery_id, site, repository, branch, workflow, actor, command, mode, exit_code, created_at
FROM deployments
WHERE (? = '' OR site = ?)
ORDER BY created_at DESC, rowid DESC
LIMIT ?;`, site, site, limit)
	if err != nil {
		return nil, fmt.Errorf("query deployments: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r         Record
			delivery  sql.NullString
			actor     sql.NullString
			createdAt string
		)
		if err := rows.Scan(&r.ID, &delivery, &r.Site, &r.Repository, &r.Branch, &r.Workflow,
			&actor, &r.Command, &r.Mode, &r.ExitCode, &createdAt); err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		r.DeliveryID = delivery.String
		r.Actor = actor.String
		r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deployments: %w", err)
	}
	return out, nil
}
