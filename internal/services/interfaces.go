package services

import (
	"context"

	"tonic/internal/domain"
)

// Estimator approximates the size of a directory without a full walk.
type Estimator interface {
	Estimate(ctx context.Context, path string) (int64, error)
}

// ExclusionList is the persistent set of paths later scans skip.
type ExclusionList interface {
	AddExclusion(ctx context.Context, path string) error
	ExcludedPaths(ctx context.Context) (map[string]struct{}, error)
}

// UndoJournal keeps undo tokens of executed moveToTrash plans and which
// plan ran last. Lookups that find nothing return store.ErrNotFound.
type UndoJournal interface {
	SaveUndoToken(ctx context.Context, token domain.UndoToken) error
	UndoTokenForPlan(ctx context.Context, planID string) (domain.UndoToken, error)
	DeleteUndoToken(ctx context.Context, id string) error
	RecordExecution(ctx context.Context, execution domain.Execution) error
	LastExecution(ctx context.Context) (domain.Execution, error)
}
