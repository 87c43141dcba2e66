package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/dstore/internal/record"
)

// Export writes recs as a new snapshot of storeName in one transaction.
func Export[T record.Record](ctx context.Context, a *Archive, storeName string, recs []T, at time.Time) (Snapshot, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("export: begin: %w", err)
	}
	defer tx.Rollback()

	created := at.UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (store, created_at, record_count)
		VALUES (?, ?, ?)
	`, storeName, created, len(recs))
	if err != nil {
		return Snapshot{}, fmt.Errorf("export: insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Snapshot{}, fmt.Errorf("export: snapshot id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (snapshot_id, seq, record_id, body)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("export: prepare: %w", err)
	}
	defer stmt.Close()

	for seq, rec := range recs {
		body, err := json.Marshal(rec)
		if err != nil {
			return Snapshot{}, fmt.Errorf("export: encode record %d: %w", rec.RecordID(), err)
		}
		if _, err := stmt.ExecContext(ctx, id, seq, rec.RecordID(), string(body)); err != nil {
			return Snapshot{}, fmt.Errorf("export: insert record %d: %w", rec.RecordID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("export: commit: %w", err)
	}

	return Snapshot{
		ID:        id,
		Store:     storeName,
		CreatedAt: at.UTC(),
		Records:   len(recs),
	}, nil
}

// Import returns the records of the newest snapshot of storeName in
// sequence order. Returns ErrNoSnapshot if there is none.
func Import[T record.Record](ctx context.Context, a *Archive, storeName string) ([]T, Snapshot, error) {
	snap, err := a.Latest(ctx, storeName)
	if err != nil {
		return nil, Snapshot{}, err
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT body
		FROM records
		WHERE snapshot_id = ?
		ORDER BY seq ASC
	`, snap.ID)
	if err != nil {
		return nil, Snapshot{}, fmt.Errorf("import: query records: %w", err)
	}
	defer rows.Close()

	recs := []T{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, Snapshot{}, fmt.Errorf("import: scan record: %w", err)
		}
		rec, err := record.Decode[T]([]byte(body))
		if err != nil {
			return nil, Snapshot{}, fmt.Errorf("import: decode record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, Snapshot{}, fmt.Errorf("import: iterate records: %w", err)
	}
	return recs, snap, nil
}
