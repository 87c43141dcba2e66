// Package archive keeps point-in-time snapshots of stores in SQLite.
//
// A snapshot holds the full record sequence of one store. Exports append a
// new snapshot; imports read the most recent one back in sequence order.
package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// ErrNoSnapshot is returned when a store has never been exported.
var ErrNoSnapshot = errors.New("no snapshot")

// Snapshot describes one export.
type Snapshot struct {
	ID        int64     `json:"id"`
	Store     string    `json:"store"`
	CreatedAt time.Time `json:"created_at"`
	Records   int       `json:"records"`
}

// Archive is a SQLite database of snapshots.
type Archive struct {
	db *sql.DB
}

// Open creates or opens the archive at path.
//
// The database is configured with:
//   - WAL mode
//   - NORMAL synchronous mode
//   - 5-second busy timeout
//   - foreign key enforcement
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to archive: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Snapshots lists the snapshots of a store, newest first.
func (a *Archive) Snapshots(ctx context.Context, storeName string) ([]Snapshot, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, store, created_at, record_count
		FROM snapshots
		WHERE store = ?
		ORDER BY id DESC
	`, storeName)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// Latest returns the newest snapshot of a store, or ErrNoSnapshot.
func (a *Archive) Latest(ctx context.Context, storeName string) (Snapshot, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, store, created_at, record_count
		FROM snapshots
		WHERE store = ?
		ORDER BY id DESC
		LIMIT 1
	`, storeName)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("store %q: %w", storeName, ErrNoSnapshot)
	}
	return snap, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (Snapshot, error) {
	var (
		snap    Snapshot
		created string
	)
	if err := row.Scan(&snap.ID, &snap.Store, &created, &snap.Records); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, err
		}
		return Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot time %q: %w", created, err)
	}
	snap.CreatedAt = t
	return snap, nil
}
