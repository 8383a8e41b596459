package treemap

import "fmt"

type Algorithm string

const (
	AlgorithmSquarified   Algorithm = "squarified"
	AlgorithmSliceAndDice Algorithm = "sliceAndDice"
)

func ParseAlgorithm(value string) (Algorithm, error) {
	switch Algorithm(value) {
	case AlgorithmSquarified, "":
		return AlgorithmSquarified, nil
	case AlgorithmSliceAndDice, "slice-and-dice", "slice":
		return AlgorithmSliceAndDice, nil
	default:
		return "", fmt.Errorf("unknown treemap algorithm %q", value)
	}
}

type Item struct {
	Key    string
	Label  string
	Weight float64
}

type Tile struct {
	Item
	Rect Rect
}

// Layout places items in bounds and returns one tile per item that received
// positive area, largest first.
func Layout(algorithm Algorithm, items []Item, bounds Rect) []Tile {
	weights := make([]float64, len(items))
	for index, item := range items {
		weights[index] = item.Weight
	}

	var rects []Rect
	if algorithm == AlgorithmSliceAndDice {
		rects = SliceAndDice(weights, bounds)
	} else {
		rects = Squarify(weights, bounds)
	}

	tiles := make([]Tile, 0, len(rects))
	for _, index := range descending(weights) {
		if index >= len(rects) || rects[index].Area() <= 0 {
			continue
		}
		tiles = append(tiles, Tile{Item: items[index], Rect: rects[index]})
	}
	return tiles
}
