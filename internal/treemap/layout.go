package treemap

import (
	"math"
	"sort"
)

// Squarify lays weights out with the squarified algorithm. The result is
// aligned with weights: rects[i] belongs to weights[i]. An all-zero weight
// list or a degenerate rectangle yields zero-area rectangles.
func Squarify(weights []float64, bounds Rect) []Rect {
	rects := make([]Rect, len(weights))
	clamped, total := clampWeights(weights)
	if len(weights) == 0 || total == 0 || bounds.Degenerate() {
		return zeroRects(rects, bounds)
	}

	scale := bounds.Area() / total
	order := positive(descending(clamped), clamped)
	areas := make([]float64, len(order))
	for position, index := range order {
		areas[position] = clamped[index] * scale
	}

	remaining := bounds
	start := 0
	for start < len(order) {
		shortSide := math.Min(remaining.W, remaining.H)
		end := start + 1
		rowArea := areas[start]
		for end < len(order) {
			grown := rowArea + areas[end]
			if worstRatio(areas[start:end+1], grown, shortSide) > worstRatio(areas[start:end], rowArea, shortSide) {
				break
			}
			rowArea = grown
			end++
		}
		last := end == len(order)
		remaining = layoutRow(rects, order[start:end], areas[start:end], rowArea, remaining, last)
		start = end
	}

	for index, weight := range clamped {
		if weight == 0 {
			rects[index] = Rect{X: bounds.X + bounds.W, Y: bounds.Y + bounds.H}
		}
	}
	return rects
}

// layoutRow places one row as a strip along the shorter side of remaining and
// returns what is left. The final row absorbs all of remaining.
func layoutRow(rects []Rect, indices []int, areas []float64, rowArea float64, remaining Rect, last bool) Rect {
	if remaining.W >= remaining.H {
		thickness := rowArea / remaining.H
		if last {
			thickness = remaining.W
		}
		y := remaining.Y
		for position, index := range indices {
			height := areas[position] / rowArea * remaining.H
			if position == len(indices)-1 {
				height = remaining.Y + remaining.H - y
			}
			rects[index] = Rect{X: remaining.X, Y: y, W: thickness, H: height}
			y += height
		}
		return Rect{X: remaining.X + thickness, Y: remaining.Y, W: math.Max(remaining.W-thickness, 0), H: remaining.H}
	}

	thickness := rowArea / remaining.W
	if last {
		thickness = remaining.H
	}
	x := remaining.X
	for position, index := range indices {
		width := areas[position] / rowArea * remaining.W
		if position == len(indices)-1 {
			width = remaining.X + remaining.W - x
		}
		rects[index] = Rect{X: x, Y: remaining.Y, W: width, H: thickness}
		x += width
	}
	return Rect{X: remaining.X, Y: remaining.Y + thickness, W: remaining.W, H: math.Max(remaining.H-thickness, 0)}
}

// worstRatio is the largest aspect ratio in a row of areas laid against side.
func worstRatio(areas []float64, sum, side float64) float64 {
	if sum == 0 || side == 0 {
		return math.Inf(1)
	}
	largest, smallest := areas[0], areas[0]
	for _, area := range areas[1:] {
		largest = math.Max(largest, area)
		smallest = math.Min(smallest, area)
	}
	sideSquared := side * side
	sumSquared := sum * sum
	return math.Max(sideSquared*largest/sumSquared, sumSquared/(sideSquared*smallest))
}

// SliceAndDice cuts, for each item in descending weight order, its share of
// the remaining rectangle along whichever side is currently longer. A
// degenerate rectangle yields no rectangles.
func SliceAndDice(weights []float64, bounds Rect) []Rect {
	if bounds.Degenerate() {
		return nil
	}
	rects := make([]Rect, len(weights))
	clamped, total := clampWeights(weights)
	if total == 0 {
		return zeroRects(rects, bounds)
	}

	remaining := bounds
	remainingWeight := total
	order := positive(descending(clamped), clamped)
	for position, index := range order {
		fraction := clamped[index] / remainingWeight
		if position == len(order)-1 {
			fraction = 1
		}
		if remaining.W >= remaining.H {
			width := remaining.W * fraction
			rects[index] = Rect{X: remaining.X, Y: remaining.Y, W: width, H: remaining.H}
			remaining.X += width
			remaining.W = math.Max(remaining.W-width, 0)
		} else {
			height := remaining.H * fraction
			rects[index] = Rect{X: remaining.X, Y: remaining.Y, W: remaining.W, H: height}
			remaining.Y += height
			remaining.H = math.Max(remaining.H-height, 0)
		}
		remainingWeight -= clamped[index]
	}

	for index, weight := range clamped {
		if weight == 0 {
			rects[index] = Rect{X: remaining.X, Y: remaining.Y}
		}
	}
	return rects
}

func zeroRects(rects []Rect, bounds Rect) []Rect {
	origin := Rect{}
	if bounds.Finite() {
		origin = Rect{X: bounds.X, Y: bounds.Y}
	}
	for index := range rects {
		rects[index] = origin
	}
	return rects
}

// positive drops zero weights from an ordering.
func positive(order []int, weights []float64) []int {
	kept := order[:0]
	for _, index := range order {
		if weights[index] > 0 {
			kept = append(kept, index)
		}
	}
	return kept
}

func sortStable(order []int, less func(a, b int) bool) {
	sort.SliceStable(order, func(i, j int) bool { return less(order[i], order[j]) })
}
