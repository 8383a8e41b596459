package services

import (
	"context"
	"slices"
	"sync"

	"tonic/internal/domain"
	"tonic/internal/store"
)

// MemoryJournal is an UndoJournal that lives as long as the process.
type MemoryJournal struct {
	mu     sync.Mutex
	tokens []domain.UndoToken
	last   *domain.Execution
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (journal *MemoryJournal) SaveUndoToken(_ context.Context, token domain.UndoToken) error {
	journal.mu.Lock()
	defer journal.mu.Unlock()
	journal.tokens = slices.DeleteFunc(journal.tokens, func(existing domain.UndoToken) bool {
		return existing.ID == token.ID
	})
	journal.tokens = append(journal.tokens, token)
	return nil
}

func (journal *MemoryJournal) UndoTokenForPlan(_ context.Context, planID string) (domain.UndoToken, error) {
	journal.mu.Lock()
	defer journal.mu.Unlock()
	for _, token := range slices.Backward(journal.tokens) {
		if token.PlanID == planID {
			return token, nil
		}
	}
	return domain.UndoToken{}, store.ErrNotFound
}

func (journal *MemoryJournal) RecordExecution(_ context.Context, execution domain.Execution) error {
	journal.mu.Lock()
	defer journal.mu.Unlock()
	journal.last = &execution
	return nil
}

func (journal *MemoryJournal) LastExecution(context.Context) (domain.Execution, error) {
	journal.mu.Lock()
	defer journal.mu.Unlock()
	if journal.last == nil {
		return domain.Execution{}, store.ErrNotFound
	}
	return *journal.last, nil
}

func (journal *MemoryJournal) DeleteUndoToken(_ context.Context, id string) error {
	journal.mu.Lock()
	defer journal.mu.Unlock()
	before := len(journal.tokens)
	journal.tokens = slices.DeleteFunc(journal.tokens, func(existing domain.UndoToken) bool {
		return existing.ID == id
	})
	if len(journal.tokens) == before {
		return store.ErrNotFound
	}
	return nil
}

// MemoryExclusions is an ExclusionList that lives as long as the process.
type MemoryExclusions struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

func NewMemoryExclusions() *MemoryExclusions {
	return &MemoryExclusions{paths: make(map[string]struct{})}
}

func (list *MemoryExclusions) AddExclusion(_ context.Context, path string) error {
	list.mu.Lock()
	defer list.mu.Unlock()
	list.paths[domain.CanonicalPath(path)] = struct{}{}
	return nil
}

func (list *MemoryExclusions) ExcludedPaths(context.Context) (map[string]struct{}, error) {
	list.mu.Lock()
	defer list.mu.Unlock()
	paths := make(map[string]struct{}, len(list.paths))
	for path := range list.paths {
		paths[path] = struct{}{}
	}
	return paths, nil
}
