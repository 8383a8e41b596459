package services

import (
	"fmt"

	"tonic/internal/domain"
)

const DefaultQuickDepth = 3

type ScanRequest struct {
	Mode          domain.ScanMode
	RootPath      string
	TargetedPaths []string
	// QuickDepth is the depth below the root at which quick scans stop
	// enumerating and estimate instead. Zero selects DefaultQuickDepth.
	QuickDepth int
	ShowHidden bool
}

// normalize validates the request and returns it with canonical paths.
func (request ScanRequest) normalize() (ScanRequest, error) {
	if !request.Mode.Valid() {
		return request, fmt.Errorf("scan mode %q: %w", request.Mode, ErrInvalidRequest)
	}
	if request.QuickDepth < 0 {
		return request, fmt.Errorf("quick depth %d: %w", request.QuickDepth, ErrInvalidRequest)
	}
	if request.QuickDepth == 0 {
		request.QuickDepth = DefaultQuickDepth
	}

	if request.Mode == domain.ScanTargeted {
		if len(request.TargetedPaths) == 0 {
			return request, fmt.Errorf("targeted scan without paths: %w", ErrInvalidRequest)
		}
		request.TargetedPaths = outermost(normalizePaths(request.TargetedPaths))
		if len(request.TargetedPaths) == 0 {
			return request, fmt.Errorf("targeted scan without paths: %w", ErrInvalidRequest)
		}
		if request.RootPath != "" {
			request.RootPath = domain.CanonicalPath(request.RootPath)
		}
		return request, nil
	}

	if request.RootPath == "" {
		return request, fmt.Errorf("%s scan without root: %w", request.Mode, ErrInvalidRequest)
	}
	request.RootPath = domain.CanonicalPath(request.RootPath)
	request.TargetedPaths = nil
	return request, nil
}

// roots lists the subtrees the request walks.
func (request ScanRequest) roots() []string {
	if request.Mode == domain.ScanTargeted {
		return request.TargetedPaths
	}
	return []string{request.RootPath}
}
