package engine

import (
	"context"
	"errors"
	"fmt"

	"tonic/internal/domain"
	"tonic/internal/event"
	"tonic/internal/services"
)

// PrepareCleanupPlan builds a plan from the cart.
func (engine *Engine) PrepareCleanupPlan(action domain.ActionType) (domain.CleanupPlan, error) {
	return engine.cleanup.PrepareCleanupPlan(engine.Cart(), action)
}

// PreparePlanFor builds a plan for paths outside the cart.
func (engine *Engine) PreparePlanFor(paths []string, action domain.ActionType) (domain.CleanupPlan, error) {
	nodes := make([]domain.StorageNode, 0, len(paths))
	for _, path := range paths {
		path = domain.CanonicalPath(path)
		node, ok := engine.index.Get(path)
		if !ok {
			node = domain.StorageNode{Path: path, Name: domain.DisplayName(path)}
		}
		nodes = append(nodes, node)
	}
	return engine.cleanup.PrepareCleanupPlan(nodes, action)
}

func (engine *Engine) Plan(id string) (domain.CleanupPlan, bool) {
	return engine.cleanup.Plan(id)
}

// ExecuteCleanup waits for any running scan to finish writing, executes the
// plan and evicts what it removed or excluded from the index.
func (engine *Engine) ExecuteCleanup(ctx context.Context, planID string) (domain.CleanupExecutionResult, error) {
	if err := engine.scanner.AwaitIdle(ctx); err != nil {
		return domain.CleanupExecutionResult{PlanID: planID}, err
	}
	result, err := engine.cleanup.ExecuteCleanup(ctx, planID)
	if err != nil {
		return result, err
	}

	gone := append(append([]string(nil), result.CleanedPaths...), result.ExcludedPaths...)
	if len(gone) > 0 {
		engine.scanner.Evict(gone)
		engine.removeFromCart(gone)
		engine.layouts.Purge()
	}
	// A failed item may still be partly gone from disk.
	if touched := touchedFailures(result); len(touched) > 0 {
		if err := engine.Rescan(context.WithoutCancel(ctx), touched); err != nil {
			engine.logger.Warn("rescan after failed cleanup items", "paths", len(touched), "error", err)
		}
		engine.layouts.Purge()
	}

	data := map[string]any{
		"plan":     result.PlanID,
		"action":   string(result.ActionType),
		"cleaned":  result.CleanedItems,
		"bytes":    result.CleanedBytes,
		"excluded": result.ExcludedItems,
		"failed":   result.FailedItems,
	}
	if result.UndoToken != nil {
		data["undo_token"] = result.UndoToken.ID
	}
	engine.publish(event.CleanupExecuted, data)
	for _, path := range result.ExcludedPaths {
		engine.publish(event.ExclusionChanged, map[string]any{"path": path, "excluded": true})
	}
	return result, nil
}

func touchedFailures(result domain.CleanupExecutionResult) []string {
	if result.ActionType == domain.ActionExcludeForever {
		return nil
	}
	paths := make([]string, 0, len(result.Failed))
	for _, failure := range result.Failed {
		paths = append(paths, failure.Path)
	}
	return paths
}

// Undo restores the most recently executed plan when it was a moveToTrash
// plan and rescans the restored paths so the index reflects them again. It
// returns ErrNothingToUndo when there is nothing to restore.
func (engine *Engine) Undo(ctx context.Context) (services.UndoResult, error) {
	if err := engine.scanner.AwaitIdle(ctx); err != nil {
		return services.UndoResult{}, err
	}
	result, ok, err := engine.cleanup.UndoLast(ctx)
	if err != nil {
		return result, err
	}
	if !ok && len(result.Failed) == 0 {
		return result, ErrNothingToUndo
	}

	if len(result.Restored) > 0 {
		if err := engine.Rescan(ctx, result.Restored); err != nil {
			return result, fmt.Errorf("rescan restored paths: %w", err)
		}
	}
	engine.publish(event.CleanupUndone, map[string]any{
		"plan":     result.PlanID,
		"restored": len(result.Restored),
		"failed":   len(result.Failed),
	})
	return result, nil
}

// UndoLastCleanupPlan reports whether anything was restored.
func (engine *Engine) UndoLastCleanupPlan(ctx context.Context) (bool, error) {
	result, err := engine.Undo(ctx)
	if errors.Is(err, ErrNothingToUndo) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(result.Restored) > 0, nil
}
