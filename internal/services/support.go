package services

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"tonic/internal/domain"
)

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func isWithin(root, path string) bool {
	if root == path {
		return true
	}
	if root == string(filepath.Separator) {
		return strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

func isPermissionErr(err error) bool {
	return errors.Is(err, fs.ErrPermission)
}

func normalizePaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	result := make([]string, 0, len(paths))
	for _, path := range paths {
		if path == "" {
			continue
		}
		clean := domain.CanonicalPath(path)
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		result = append(result, clean)
	}
	return result
}

// outermost drops every path that lies inside another path of the set. The
// result is sorted.
func outermost(paths []string) []string {
	sorted := slices.Clone(paths)
	slices.Sort(sorted)
	result := make([]string, 0, len(sorted))
	for _, path := range sorted {
		covered := false
		for _, kept := range result {
			if isWithin(kept, path) {
				covered = true
				break
			}
		}
		if !covered {
			result = append(result, path)
		}
	}
	return result
}

// existingAncestor returns path or its closest ancestor that exists.
func existingAncestor(path string) string {
	for {
		if _, err := os.Lstat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
