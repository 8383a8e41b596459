package engine

import (
	"fmt"

	"tonic/internal/domain"
	"tonic/internal/treemap"
)

type layoutKey struct {
	path       string
	generation uint64
	algorithm  treemap.Algorithm
	bounds     treemap.Rect
}

func (key layoutKey) String() string {
	return fmt.Sprintf("%s@%d/%s/%s", key.path, key.generation, key.algorithm, key.bounds)
}

// Layout lays out the indexed children of path in bounds. Results are cached
// per index generation and concurrent callers share one computation.
func (engine *Engine) Layout(path string, algorithm treemap.Algorithm, bounds treemap.Rect) []treemap.Tile {
	key := layoutKey{
		path:       domain.CanonicalPath(path),
		generation: engine.index.Generation(),
		algorithm:  algorithm,
		bounds:     bounds,
	}
	if tiles, ok := engine.layouts.Get(key); ok {
		return tiles
	}

	value, _, _ := engine.group.Do(key.String(), func() (any, error) {
		children := engine.index.Children(key.path)
		items := make([]treemap.Item, 0, len(children))
		for _, child := range children {
			items = append(items, treemap.Item{Key: child.Path, Label: child.Name, Weight: float64(child.LogicalBytes)})
		}
		tiles := treemap.Layout(algorithm, items, bounds)
		engine.layouts.Add(key, tiles)
		return tiles, nil
	})
	return value.([]treemap.Tile)
}
