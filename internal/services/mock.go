package services

import (
	"context"
	"fmt"
	"sync"

	"tonic/internal/domain"
	"tonic/internal/trash"
)

// MockTrash wraps a trash facility and injects failures by path.
type MockTrash struct {
	Inner    trash.Facility
	Fail     map[string]error
	ReadyErr error
	// Leftover paths are trashed but reported as only partly removed.
	Leftover map[string]bool

	mu   sync.Mutex
	puts []string
}

func NewMockTrash(inner trash.Facility) *MockTrash {
	return &MockTrash{Inner: inner, Fail: make(map[string]error)}
}

func (mock *MockTrash) Ready() error {
	if mock.ReadyErr != nil {
		return mock.ReadyErr
	}
	return mock.Inner.Ready()
}

func (mock *MockTrash) Put(path string) (domain.TrashRecord, error) {
	mock.mu.Lock()
	mock.puts = append(mock.puts, path)
	mock.mu.Unlock()
	if err, ok := mock.Fail[path]; ok {
		return domain.TrashRecord{}, err
	}
	record, err := mock.Inner.Put(path)
	if err == nil && mock.Leftover[path] {
		err = fmt.Errorf("%w: %s", trash.ErrSourceRemains, path)
	}
	return record, err
}

func (mock *MockTrash) Restore(record domain.TrashRecord) error {
	if err, ok := mock.Fail[record.OriginalPath]; ok {
		return err
	}
	return mock.Inner.Restore(record)
}

// Puts lists every path handed to Put, in call order.
func (mock *MockTrash) Puts() []string {
	mock.mu.Lock()
	defer mock.mu.Unlock()
	return append([]string(nil), mock.puts...)
}

// MockEstimator returns a fixed size for every directory.
type MockEstimator struct {
	Size int64
	Err  error

	mu    sync.Mutex
	calls []string
}

func (mock *MockEstimator) Estimate(ctx context.Context, path string) (int64, error) {
	mock.mu.Lock()
	mock.calls = append(mock.calls, path)
	mock.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return mock.Size, mock.Err
}

func (mock *MockEstimator) Calls() []string {
	mock.mu.Lock()
	defer mock.mu.Unlock()
	return append([]string(nil), mock.calls...)
}
