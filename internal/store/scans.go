package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ScanRecord summarizes one finished scan session.
type ScanRecord struct {
	ID         string
	RootPath   string
	Mode       string
	Status     string
	Files      int64
	Bytes      int64
	Warnings   int64
	StartedAt  time.Time
	FinishedAt time.Time
}

// SnapshotEntry is the size of one direct child of a scan root.
type SnapshotEntry struct {
	Path            string
	LogicalBytes    int64
	SizeIsEstimated bool
}

func (store *Store) RecordScan(ctx context.Context, record ScanRecord, entries []SnapshotEntry) error {
	return store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scans (id, root_path, mode, status, files, bytes, warnings, started_at, finished_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.ID, record.RootPath, record.Mode, record.Status, record.Files, record.Bytes, record.Warnings,
			unixNano(record.StartedAt), unixNano(record.FinishedAt)); err != nil {
			return fmt.Errorf("insert scan %s: %w", record.ID, err)
		}
		for _, entry := range entries {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO scan_snapshots (scan_id, path, logical_bytes, size_is_estimated) VALUES (?, ?, ?, ?)`,
				record.ID, entry.Path, entry.LogicalBytes, entry.SizeIsEstimated); err != nil {
				return fmt.Errorf("insert snapshot %s: %w", entry.Path, err)
			}
		}
		return nil
	})
}

// ListScans returns the most recent scans first. An empty root lists all roots.
func (store *Store) ListScans(ctx context.Context, root string, limit int) ([]ScanRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := store.db.QueryContext(ctx,
		`SELECT id, root_path, mode, status, files, bytes, warnings, started_at, finished_at
		 FROM scans WHERE (? = '' OR root_path = ?)
		 ORDER BY finished_at DESC, rowid DESC LIMIT ?`, root, root, limit)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var records []ScanRecord
	for rows.Next() {
		var record ScanRecord
		var started, finished int64
		if err := rows.Scan(&record.ID, &record.RootPath, &record.Mode, &record.Status,
			&record.Files, &record.Bytes, &record.Warnings, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		record.StartedAt = fromUnixNano(started)
		record.FinishedAt = fromUnixNano(finished)
		records = append(records, record)
	}
	return records, rows.Err()
}

func (store *Store) Snapshot(ctx context.Context, scanID string) ([]SnapshotEntry, error) {
	rows, err := store.db.QueryContext(ctx,
		`SELECT path, logical_bytes, size_is_estimated FROM scan_snapshots
		 WHERE scan_id = ? ORDER BY logical_bytes DESC, path`, scanID)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", scanID, err)
	}
	defer rows.Close()

	var entries []SnapshotEntry
	for rows.Next() {
		var entry SnapshotEntry
		if err := rows.Scan(&entry.Path, &entry.LogicalBytes, &entry.SizeIsEstimated); err != nil {
			return nil, fmt.Errorf("snapshot row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if entries == nil {
		var exists int
		err := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans WHERE id = ?`, scanID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", scanID, err)
		}
		if exists == 0 {
			return nil, fmt.Errorf("scan %s: %w", scanID, ErrNotFound)
		}
	}
	return entries, nil
}
