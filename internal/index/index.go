// Package index holds the authoritative path to StorageNode mapping.
//
// The index has a single writer (the scan orchestrator) and any number of
// readers. Readers receive copies; nothing handed out aliases index memory.
package index

import (
	"iter"
	"path/filepath"
	"slices"
	"sync"

	"tonic/internal/domain"
)

type Index struct {
	mu         sync.RWMutex
	nodes      map[string]domain.StorageNode
	children   map[string]map[string]struct{}
	generation uint64
}

func New() *Index {
	return &Index{
		nodes:    make(map[string]domain.StorageNode),
		children: make(map[string]map[string]struct{}),
	}
}

// Upsert replaces any entry for node.Path. Ancestor aggregates are left
// untouched; keeping them current is the writer's job.
func (index *Index) Upsert(node domain.StorageNode) {
	index.mu.Lock()
	defer index.mu.Unlock()
	index.upsertLocked(node)
	index.generation++
}

func (index *Index) UpsertBatch(nodes []domain.StorageNode) {
	if len(nodes) == 0 {
		return
	}
	index.mu.Lock()
	defer index.mu.Unlock()
	for _, node := range nodes {
		index.upsertLocked(node)
	}
	index.generation++
}

func (index *Index) upsertLocked(node domain.StorageNode) {
	if node.ID == "" {
		node.ID = domain.NodeID(node.Path)
	}
	index.nodes[node.Path] = node
	parent := node.ParentPath()
	if parent == "" {
		return
	}
	siblings, ok := index.children[parent]
	if !ok {
		siblings = make(map[string]struct{})
		index.children[parent] = siblings
	}
	siblings[node.Path] = struct{}{}
}

func (index *Index) Get(path string) (domain.StorageNode, bool) {
	index.mu.RLock()
	defer index.mu.RUnlock()
	node, ok := index.nodes[filepath.Clean(path)]
	return node, ok
}

// Children returns the indexed direct children of path ordered by name.
func (index *Index) Children(path string) []domain.StorageNode {
	index.mu.RLock()
	defer index.mu.RUnlock()
	return index.childrenLocked(filepath.Clean(path))
}

func (index *Index) childrenLocked(path string) []domain.StorageNode {
	paths := sortedKeys(index.children[path])
	result := make([]domain.StorageNode, 0, len(paths))
	for _, child := range paths {
		if node, ok := index.nodes[child]; ok {
			result = append(result, node)
		}
	}
	return result
}

// Query yields the node at prefix (when indexed) and every indexed node
// beneath it in depth-first, name-ordered sequence. An empty prefix yields
// the whole index. Each iteration works on a snapshot taken when it starts,
// so the sequence can be restarted and never holds the lock while yielding.
func (index *Index) Query(prefix string) iter.Seq[domain.StorageNode] {
	return func(yield func(domain.StorageNode) bool) {
		for _, node := range index.snapshot(prefix) {
			if !yield(node) {
				return
			}
		}
	}
}

func (index *Index) snapshot(prefix string) []domain.StorageNode {
	index.mu.RLock()
	defer index.mu.RUnlock()

	var starts []string
	if prefix == "" {
		for path, node := range index.nodes {
			if _, hasParent := index.nodes[node.ParentPath()]; !hasParent {
				starts = append(starts, path)
			}
		}
		slices.Sort(starts)
	} else {
		starts = []string{filepath.Clean(prefix)}
	}

	var result []domain.StorageNode
	var walk func(path string)
	walk = func(path string) {
		if node, ok := index.nodes[path]; ok {
			result = append(result, node)
		}
		for _, child := range sortedKeys(index.children[path]) {
			walk(child)
		}
	}
	for _, start := range starts {
		walk(start)
	}
	return result
}

// Remove evicts path and every indexed descendant, returning the number of
// nodes removed.
func (index *Index) Remove(path string) int {
	index.mu.Lock()
	defer index.mu.Unlock()
	path = filepath.Clean(path)

	removed := 0
	var drop func(current string)
	drop = func(current string) {
		for child := range index.children[current] {
			drop(child)
		}
		delete(index.children, current)
		if _, ok := index.nodes[current]; ok {
			delete(index.nodes, current)
			removed++
		}
	}
	drop(path)

	if parent := filepath.Dir(path); parent != path {
		if siblings, ok := index.children[parent]; ok {
			delete(siblings, path)
			if len(siblings) == 0 {
				delete(index.children, parent)
			}
		}
	}
	if removed > 0 {
		index.generation++
	}
	return removed
}

// Generation changes whenever the index is mutated.
func (index *Index) Generation() uint64 {
	index.mu.RLock()
	defer index.mu.RUnlock()
	return index.generation
}

func (index *Index) Len() int {
	index.mu.RLock()
	defer index.mu.RUnlock()
	return len(index.nodes)
}

func (index *Index) Reset() {
	index.mu.Lock()
	defer index.mu.Unlock()
	index.nodes = make(map[string]domain.StorageNode)
	index.children = make(map[string]map[string]struct{})
	index.generation++
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
