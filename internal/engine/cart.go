package engine

import (
	"path/filepath"
	"slices"
	"strings"

	"tonic/internal/domain"
)

// AddToCart appends paths not already in the cart.
func (engine *Engine) AddToCart(paths ...string) {
	engine.cartMu.Lock()
	defer engine.cartMu.Unlock()
	for _, path := range paths {
		path = domain.CanonicalPath(path)
		if path != "" && !slices.Contains(engine.cart, path) {
			engine.cart = append(engine.cart, path)
		}
	}
}

// ToggleCart adds or removes path and reports whether it is now in the cart.
func (engine *Engine) ToggleCart(path string) bool {
	path = domain.CanonicalPath(path)
	engine.cartMu.Lock()
	defer engine.cartMu.Unlock()
	if index := slices.Index(engine.cart, path); index >= 0 {
		engine.cart = slices.Delete(engine.cart, index, index+1)
		return false
	}
	engine.cart = append(engine.cart, path)
	return true
}

func (engine *Engine) InCart(path string) bool {
	engine.cartMu.Lock()
	defer engine.cartMu.Unlock()
	return slices.Contains(engine.cart, domain.CanonicalPath(path))
}

func (engine *Engine) CartPaths() []string {
	engine.cartMu.Lock()
	defer engine.cartMu.Unlock()
	return slices.Clone(engine.cart)
}

// Cart resolves cart paths against the index. Paths no longer indexed are
// returned with only Path and Name set.
func (engine *Engine) Cart() []domain.StorageNode {
	paths := engine.CartPaths()
	nodes := make([]domain.StorageNode, 0, len(paths))
	for _, path := range paths {
		node, ok := engine.index.Get(path)
		if !ok {
			node = domain.StorageNode{Path: path, Name: domain.DisplayName(path)}
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// CartBytes sums indexed sizes, counting nested cart entries once.
func (engine *Engine) CartBytes() int64 {
	var total int64
	var kept []string
	nodes := engine.Cart()
	slices.SortFunc(nodes, func(a, b domain.StorageNode) int { return strings.Compare(a.Path, b.Path) })
	for _, node := range nodes {
		if slices.ContainsFunc(kept, func(root string) bool { return within(root, node.Path) }) {
			continue
		}
		kept = append(kept, node.Path)
		total += node.LogicalBytes
	}
	return total
}

func (engine *Engine) ClearCart() {
	engine.cartMu.Lock()
	defer engine.cartMu.Unlock()
	engine.cart = nil
}

func (engine *Engine) removeFromCart(paths []string) {
	engine.cartMu.Lock()
	defer engine.cartMu.Unlock()
	engine.cart = slices.DeleteFunc(engine.cart, func(item string) bool {
		return slices.ContainsFunc(paths, func(removed string) bool { return within(removed, item) })
	})
}

func within(root, path string) bool {
	if root == path {
		return true
	}
	if root == string(filepath.Separator) {
		return strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
