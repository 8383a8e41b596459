// Package treemap converts weighted items into non-overlapping rectangles
// whose areas are proportional to the weights.
package treemap

import (
	"fmt"
	"math"
)

type Rect struct {
	X, Y, W, H float64
}

func (rect Rect) Area() float64 {
	return rect.W * rect.H
}

func (rect Rect) Finite() bool {
	for _, value := range [...]float64{rect.X, rect.Y, rect.W, rect.H} {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return false
		}
	}
	return true
}

// Degenerate reports whether no positive area can be laid out in rect.
func (rect Rect) Degenerate() bool {
	return !rect.Finite() || rect.W <= 0 || rect.H <= 0
}

// Overlap returns the area shared by two rectangles.
func (rect Rect) Overlap(other Rect) float64 {
	width := math.Min(rect.X+rect.W, other.X+other.W) - math.Max(rect.X, other.X)
	height := math.Min(rect.Y+rect.H, other.Y+other.H) - math.Max(rect.Y, other.Y)
	if width <= 0 || height <= 0 {
		return 0
	}
	return width * height
}

// Inset shrinks rect by pad on every side, collapsing to zero size rather than
// going negative.
func (rect Rect) Inset(pad float64) Rect {
	inset := Rect{X: rect.X + pad, Y: rect.Y + pad, W: rect.W - 2*pad, H: rect.H - 2*pad}
	if inset.W < 0 {
		inset.W = 0
	}
	if inset.H < 0 {
		inset.H = 0
	}
	return inset
}

func (rect Rect) String() string {
	return fmt.Sprintf("(%.2f,%.2f %.2fx%.2f)", rect.X, rect.Y, rect.W, rect.H)
}

// clampWeights maps non-finite and non-positive weights to zero and returns
// the total. Weights whose sum overflows are scaled by the largest one.
func clampWeights(weights []float64) ([]float64, float64) {
	clamped := make([]float64, len(weights))
	var total, largest float64
	for index, weight := range weights {
		if math.IsNaN(weight) || math.IsInf(weight, 0) || weight <= 0 {
			continue
		}
		clamped[index] = weight
		total += weight
		largest = math.Max(largest, weight)
	}
	if math.IsInf(total, 1) {
		total = 0
		for index, weight := range clamped {
			clamped[index] = weight / largest
			total += clamped[index]
		}
	}
	return clamped, total
}

// descending returns item indices ordered by weight, largest first. Equal
// weights keep input order.
func descending(weights []float64) []int {
	order := make([]int, len(weights))
	for index := range order {
		order[index] = index
	}
	sortStable(order, func(a, b int) bool { return weights[a] > weights[b] })
	return order
}
