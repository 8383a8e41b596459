package store

import (
	"context"
	"fmt"
	"time"
)

type Exclusion struct {
	Path      string
	CreatedAt time.Time
}

// AddExclusion records path; adding an existing path is a no-op.
func (store *Store) AddExclusion(ctx context.Context, path string) error {
	_, err := store.db.ExecContext(ctx,
		`INSERT INTO exclusions (path, created_at) VALUES (?, ?) ON CONFLICT(path) DO NOTHING`,
		path, unixNano(time.Now()))
	if err != nil {
		return fmt.Errorf("add exclusion %s: %w", path, err)
	}
	return nil
}

func (store *Store) RemoveExclusion(ctx context.Context, path string) error {
	result, err := store.db.ExecContext(ctx, `DELETE FROM exclusions WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("remove exclusion %s: %w", path, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove exclusion %s: %w", path, err)
	}
	if affected == 0 {
		return fmt.Errorf("exclusion %s: %w", path, ErrNotFound)
	}
	return nil
}

func (store *Store) Exclusions(ctx context.Context) ([]Exclusion, error) {
	rows, err := store.db.QueryContext(ctx, `SELECT path, created_at FROM exclusions ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list exclusions: %w", err)
	}
	defer rows.Close()

	var exclusions []Exclusion
	for rows.Next() {
		var exclusion Exclusion
		var created int64
		if err := rows.Scan(&exclusion.Path, &created); err != nil {
			return nil, fmt.Errorf("scan exclusion: %w", err)
		}
		exclusion.CreatedAt = fromUnixNano(created)
		exclusions = append(exclusions, exclusion)
	}
	return exclusions, rows.Err()
}

// ExcludedPaths returns the exclusion list as a set.
func (store *Store) ExcludedPaths(ctx context.Context) (map[string]struct{}, error) {
	exclusions, err := store.Exclusions(ctx)
	if err != nil {
		return nil, err
	}
	paths := make(map[string]struct{}, len(exclusions))
	for _, exclusion := range exclusions {
		paths[exclusion.Path] = struct{}{}
	}
	return paths, nil
}
