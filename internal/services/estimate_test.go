package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func estimateTree(t *testing.T) string {
	root := t.TempDir()
	for _, dir := range []string{"d1", "d2", "d3"} {
		writeSized(t, filepath.Join(root, dir, "file"), 100)
	}
	return root
}

func TestSampleEstimatorIsExactWithinBudget(t *testing.T) {
	root := estimateTree(t)
	size, err := NewSampleEstimator(0).Estimate(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, int64(300), size)
}

func TestSampleEstimatorExtrapolatesPastBudget(t *testing.T) {
	root := estimateTree(t)
	estimator := NewSampleEstimator(5)

	first, err := estimator.Estimate(context.Background(), root)
	require.NoError(t, err)
	second, err := estimator.Estimate(context.Background(), root)
	require.NoError(t, err)

	// root, d1 and d2 visited for 200 bytes; d3 is still queued.
	assert.Equal(t, int64(200+200/3), first)
	assert.Equal(t, first, second)
}

func TestSampleEstimatorFailsOnMissingRoot(t *testing.T) {
	_, err := NewSampleEstimator(0).Estimate(context.Background(), filepath.Join(t.TempDir(), "gone"))
	assert.Error(t, err)
}

func TestDuEstimatorFallsBackToSampling(t *testing.T) {
	root := estimateTree(t)
	estimator := &DuEstimator{Timeout: time.Nanosecond, Fallback: NewSampleEstimator(0)}

	size, err := estimator.Estimate(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, int64(300), size)
}

func TestNewEstimator(t *testing.T) {
	estimator, err := NewEstimator("", nil)
	require.NoError(t, err)
	assert.IsType(t, &SampleEstimator{}, estimator)

	estimator, err = NewEstimator("du", nil)
	require.NoError(t, err)
	assert.IsType(t, &DuEstimator{}, estimator)

	_, err = NewEstimator("guess", nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
