package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultSampleBudget = 2048
	DefaultDuTimeout    = 30 * time.Second
)

// SampleEstimator walks a directory breadth-first in name order until it has
// looked at Budget entries. When the walk does not finish, the mean size per
// visited directory is extrapolated over the directories still queued.
type SampleEstimator struct {
	Budget int
}

func NewSampleEstimator(budget int) *SampleEstimator {
	if budget <= 0 {
		budget = DefaultSampleBudget
	}
	return &SampleEstimator{Budget: budget}
}

func (estimator *SampleEstimator) Estimate(ctx context.Context, path string) (int64, error) {
	budget := estimator.Budget
	if budget <= 0 {
		budget = DefaultSampleBudget
	}

	queue := []string{path}
	var total, visitedDirs int64
	seen := 0
	for len(queue) > 0 && seen < budget {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			if dir == path {
				return 0, err
			}
			continue
		}
		visitedDirs++
		for _, entry := range entries {
			seen++
			if entry.IsDir() {
				queue = append(queue, filepath.Join(dir, entry.Name()))
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			total += info.Size()
		}
	}

	if len(queue) == 0 || visitedDirs == 0 {
		return total, nil
	}
	mean := total / visitedDirs
	return total + mean*int64(len(queue)), nil
}

// DuEstimator asks du(1) for the allocated size and falls back when du is
// missing, slow or fails.
type DuEstimator struct {
	Timeout  time.Duration
	Fallback Estimator
	Logger   *slog.Logger
}

func (estimator *DuEstimator) Estimate(ctx context.Context, path string) (int64, error) {
	size, err := duSize(ctx, path, estimator.timeout())
	if err == nil {
		return size, nil
	}
	if estimator.Logger != nil {
		estimator.Logger.Debug("du estimate failed, sampling instead", "path", path, "error", err)
	}
	if estimator.Fallback == nil {
		return 0, err
	}
	return estimator.Fallback.Estimate(ctx, path)
}

func (estimator *DuEstimator) timeout() time.Duration {
	if estimator.Timeout > 0 {
		return estimator.Timeout
	}
	return DefaultDuTimeout
}

func duSize(ctx context.Context, path string, timeout time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "du", "-sk", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return 0, fmt.Errorf("du timeout after %v", timeout)
		}
		if stderr.Len() > 0 {
			return 0, fmt.Errorf("du failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
		}
		return 0, fmt.Errorf("du failed: %w", err)
	}
	fields := strings.Fields(stdout.String())
	if len(fields) == 0 {
		return 0, fmt.Errorf("du output empty")
	}
	kb, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse du output: %w", err)
	}
	return kb * 1024, nil
}

// NewEstimator builds the estimator named in configuration.
func NewEstimator(name string, logger *slog.Logger) (Estimator, error) {
	switch name {
	case "", "sample":
		return NewSampleEstimator(DefaultSampleBudget), nil
	case "du":
		return &DuEstimator{Fallback: NewSampleEstimator(DefaultSampleBudget), Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown estimator %q: %w", name, ErrInvalidRequest)
	}
}
