package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tonic/internal/domain"
)

func (store *Store) SaveUndoToken(ctx context.Context, token domain.UndoToken) error {
	return store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO undo_tokens (id, plan_id, created_at) VALUES (?, ?, ?)`,
			token.ID, token.PlanID, unixNano(token.CreatedAt)); err != nil {
			return fmt.Errorf("insert undo token %s: %w", token.ID, err)
		}
		for _, record := range token.Records {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO trash_records (token_id, original_path, trash_path, is_directory, bytes, trashed_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				token.ID, record.OriginalPath, record.TrashPath, record.IsDirectory, record.Bytes, unixNano(record.TrashedAt)); err != nil {
				return fmt.Errorf("insert trash record %s: %w", record.OriginalPath, err)
			}
		}
		return nil
	})
}

// UndoTokenForPlan returns the token saved for planID.
func (store *Store) UndoTokenForPlan(ctx context.Context, planID string) (domain.UndoToken, error) {
	var token domain.UndoToken
	var created int64
	err := store.db.QueryRowContext(ctx,
		`SELECT id, plan_id, created_at FROM undo_tokens WHERE plan_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		planID,
	).Scan(&token.ID, &token.PlanID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UndoToken{}, fmt.Errorf("undo token for plan %s: %w", planID, ErrNotFound)
	}
	if err != nil {
		return domain.UndoToken{}, fmt.Errorf("undo token for plan %s: %w", planID, err)
	}
	token.CreatedAt = fromUnixNano(created)

	rows, err := store.db.QueryContext(ctx,
		`SELECT original_path, trash_path, is_directory, bytes, trashed_at
		 FROM trash_records WHERE token_id = ? ORDER BY id`, token.ID)
	if err != nil {
		return domain.UndoToken{}, fmt.Errorf("trash records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var record domain.TrashRecord
		var trashed int64
		if err := rows.Scan(&record.OriginalPath, &record.TrashPath, &record.IsDirectory, &record.Bytes, &trashed); err != nil {
			return domain.UndoToken{}, fmt.Errorf("scan trash record: %w", err)
		}
		record.TrashedAt = fromUnixNano(trashed)
		token.Records = append(token.Records, record)
	}
	return token, rows.Err()
}

// DeleteUndoToken drops a consumed token together with its records.
func (store *Store) DeleteUndoToken(ctx context.Context, id string) error {
	return store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM trash_records WHERE token_id = ?`, id); err != nil {
			return fmt.Errorf("delete trash records: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM undo_tokens WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete undo token: %w", err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return fmt.Errorf("undo token %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// RecordExecution notes that a plan ran. Only the latest execution matters
// for undo, so older rows are pruned.
func (store *Store) RecordExecution(ctx context.Context, execution domain.Execution) error {
	return store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO executions (plan_id, action, executed_at) VALUES (?, ?, ?)`,
			execution.PlanID, string(execution.ActionType), unixNano(execution.ExecutedAt)); err != nil {
			return fmt.Errorf("record execution %s: %w", execution.PlanID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM executions WHERE plan_id <> ?`, execution.PlanID); err != nil {
			return fmt.Errorf("prune executions: %w", err)
		}
		return nil
	})
}

// LastExecution returns the most recently executed plan.
func (store *Store) LastExecution(ctx context.Context) (domain.Execution, error) {
	var execution domain.Execution
	var action string
	var executed int64
	err := store.db.QueryRowContext(ctx,
		`SELECT plan_id, action, executed_at FROM executions ORDER BY executed_at DESC, rowid DESC LIMIT 1`,
	).Scan(&execution.PlanID, &action, &executed)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Execution{}, fmt.Errorf("last execution: %w", ErrNotFound)
	}
	if err != nil {
		return domain.Execution{}, fmt.Errorf("last execution: %w", err)
	}
	execution.ActionType = domain.ActionType(action)
	execution.ExecutedAt = fromUnixNano(executed)
	return execution, nil
}
