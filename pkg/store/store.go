// Package store keeps a catalog of exported runs and their artifacts in a
// SQL database. SQLite (pure Go, modernc) is the default; Postgres is
// reached through pgx's database/sql driver.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

// Driver names a catalog backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("store: not found")

// Run is one export of a model.
type Run struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"` // script path, or "reference"
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Artifact is one blob written for a run.
type Artifact struct {
	RunID       string    `json:"run_id"`
	Key         string    `json:"key"`
	Kind        string    `json:"kind"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	ETag        string    `json:"etag,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Catalog records runs and artifacts.
type Catalog struct {
	db     *sql.DB
	driver Driver
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		source TEXT NOT NULL,
		summary TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS artifacts (
		run_id TEXT NOT NULL REFERENCES runs(id),
		key TEXT NOT NULL,
		kind TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size BIGINT NOT NULL,
		etag TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (run_id, key)
	)`,
}

// Open connects to the catalog and creates its tables. For sqlite, dsn is
// a file path (default fuelgeom.db).
func Open(ctx context.Context, driver Driver, dsn string) (*Catalog, error) {
	var sqlDriver string
	switch driver {
	case "", DriverSQLite:
		driver, sqlDriver = DriverSQLite, "sqlite"
		if dsn == "" {
			dsn = "fuelgeom.db"
		}
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create dirs: %w", err)
			}
		}
	case DriverPostgres:
		sqlDriver = "pgx"
		if dsn == "" {
			return nil, fmt.Errorf("store: postgres requires a dsn")
		}
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One writer at a time.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Catalog{db: db, driver: driver}, nil
}

// Close releases the database handle.
func (c *Catalog) Close() error { return c.db.Close() }

// Driver reports the backend in use.
func (c *Catalog) Driver() Driver { return c.driver }

// rebind rewrites ? placeholders to $n for postgres.
func (c *Catalog) rebind(q string) string {
	if c.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RecordRun inserts r. A zero CreatedAt is set to now.
func (c *Catalog) RecordRun(ctx context.Context, r Run) error {
	if r.ID == "" {
		return fmt.Errorf("store: run id required")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := c.db.ExecContext(ctx,
		c.rebind(`INSERT INTO runs (id, name, source, summary, created_at) VALUES (?, ?, ?, ?, ?)`),
		r.ID, r.Name, r.Source, r.Summary, formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

// AddArtifact records a blob written for an existing run.
func (c *Catalog) AddArtifact(ctx context.Context, a Artifact) error {
	if _, err := c.Run(ctx, a.RunID); err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := c.db.ExecContext(ctx,
		c.rebind(`INSERT INTO artifacts (run_id, key, kind, content_type, size, etag, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		a.RunID, a.Key, a.Kind, a.ContentType, a.Size, a.ETag, formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("add artifact %s: %w", a.Key, err)
	}
	return nil
}

// Run returns the run with the given id.
func (c *Catalog) Run(ctx context.Context, id string) (Run, error) {
	row := c.db.QueryRowContext(ctx,
		c.rebind(`SELECT id, name, source, summary, created_at FROM runs WHERE id = ?`), id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	return r, err
}

// Runs lists every run, newest first.
func (c *Catalog) Runs(ctx context.Context) ([]Run, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, name, source, summary, created_at FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Artifacts lists the artifacts of a run in key order.
func (c *Catalog) Artifacts(ctx context.Context, runID string) ([]Artifact, error) {
	rows, err := c.db.QueryContext(ctx,
		c.rebind(`SELECT run_id, key, kind, content_type, size, etag, created_at FROM artifacts WHERE run_id = ? ORDER BY key`),
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Artifact
	for rows.Next() {
		var a Artifact
		var created string
		if err := rows.Scan(&a.RunID, &a.Key, &a.Kind, &a.ContentType, &a.Size, &a.ETag, &created); err != nil {
			return nil, err
		}
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var created string
	if err := s.Scan(&r.ID, &r.Name, &r.Source, &r.Summary, &created); err != nil {
		return Run{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return Run{}, err
	}
	r.CreatedAt = t
	return r, nil
}

// Timestamps are stored as fixed-width UTC text so that they sort
// lexically on both backends.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: bad timestamp %q: %w", s, err)
	}
	return t, nil
}
