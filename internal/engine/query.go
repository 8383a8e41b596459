package engine

import (
	"cmp"
	"path/filepath"
	"slices"
	"strings"

	"tonic/internal/domain"
)

// Filter narrows the visible set. Zero values match everything.
type Filter struct {
	NameContains string
	Extension    string
	MinBytes     int64
	Domains      []domain.Domain
	Risks        []domain.RiskLevel
	FilesOnly    bool
}

func (filter Filter) Match(node domain.StorageNode) bool {
	if filter.FilesOnly && node.IsDirectory {
		return false
	}
	if filter.NameContains != "" && !strings.Contains(strings.ToLower(node.Name), strings.ToLower(filter.NameContains)) {
		return false
	}
	if filter.Extension != "" {
		want := strings.ToLower(strings.TrimPrefix(filter.Extension, "."))
		if node.IsDirectory || strings.ToLower(strings.TrimPrefix(filepath.Ext(node.Name), ".")) != want {
			return false
		}
	}
	if node.LogicalBytes < filter.MinBytes {
		return false
	}
	if len(filter.Domains) > 0 && !slices.Contains(filter.Domains, node.Domain) {
		return false
	}
	if len(filter.Risks) > 0 && !slices.Contains(filter.Risks, node.RiskLevel) {
		return false
	}
	return true
}

func (engine *Engine) Node(path string) (domain.StorageNode, bool) {
	return engine.index.Get(domain.CanonicalPath(path))
}

// Children returns the indexed direct children of path in the given order.
func (engine *Engine) Children(path string, sortMode domain.SortMode) []domain.StorageNode {
	children := engine.index.Children(domain.CanonicalPath(path))
	SortNodes(children, sortMode)
	return children
}

// Visible returns every indexed node under root, root excluded, that
// matches filter, in index order.
func (engine *Engine) Visible(root string, filter Filter) []domain.StorageNode {
	root = domain.CanonicalPath(root)
	var visible []domain.StorageNode
	for node := range engine.index.Query(root) {
		if node.Path == root || !filter.Match(node) {
			continue
		}
		visible = append(visible, node)
	}
	return visible
}

func SortNodes(nodes []domain.StorageNode, sortMode domain.SortMode) {
	slices.SortStableFunc(nodes, func(a, b domain.StorageNode) int {
		switch sortMode {
		case domain.SortByName:
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case domain.SortByMod:
			return b.ModTime.Compare(a.ModTime)
		default:
			if a.LogicalBytes != b.LogicalBytes {
				return cmp.Compare(b.LogicalBytes, a.LogicalBytes)
			}
			return cmp.Compare(a.Name, b.Name)
		}
	})
}
