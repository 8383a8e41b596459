package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tonic/internal/domain"
	"tonic/internal/engine"
	"tonic/internal/render"
	"tonic/internal/treemap"
)

// cellGrid maps every character cell to the index of the tile covering it,
// or -1. Tile edges are rounded so neighbours share a boundary.
func cellGrid(tiles []treemap.Tile, width, height int) [][]int {
	grid := make([][]int, height)
	for row := range grid {
		grid[row] = make([]int, width)
		for col := range grid[row] {
			grid[row][col] = -1
		}
	}
	for index, tile := range tiles {
		x0, y0 := roundCell(tile.Rect.X, width), roundCell(tile.Rect.Y, height)
		x1, y1 := roundCell(tile.Rect.X+tile.Rect.W, width), roundCell(tile.Rect.Y+tile.Rect.H, height)
		for row := y0; row < y1; row++ {
			for col := x0; col < x1; col++ {
				grid[row][col] = index
			}
		}
	}
	return grid
}

func roundCell(value float64, limit int) int {
	return clamp(int(math.Round(value)), 0, limit)
}

// renderTreemap draws the children of path as coloured blocks, labelled
// where a tile is wide enough. The highlighted tile is drawn in reverse.
func renderTreemap(eng *engine.Engine, path string, algorithm treemap.Algorithm, width, height int, highlight string) string {
	tiles := eng.Layout(path, algorithm, treemap.Rect{W: float64(width), H: float64(height)})
	if len(tiles) == 0 {
		return "Nothing to draw - scan first"
	}
	grid := cellGrid(tiles, width, height)

	styles := make([]lipgloss.Style, len(tiles))
	labels := make([]labelSpot, len(tiles))
	for index, tile := range tiles {
		nodeDomain := domain.DomainOther
		if node, ok := eng.Node(tile.Key); ok {
			nodeDomain = node.Domain
		}
		fill := render.DomainColor(nodeDomain)
		style := lipgloss.NewStyle().
			Background(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", fill.R, fill.G, fill.B))).
			Foreground(lipgloss.Color("#f4f4f5"))
		if tile.Key == highlight {
			style = style.Reverse(true)
		}
		styles[index] = style
		labels[index] = labelFor(tile, width, height)
	}

	var builder strings.Builder
	for row := range grid {
		col := 0
		for col < width {
			index := grid[row][col]
			end := col
			for end < width && grid[row][end] == index {
				end++
			}
			run := []rune(strings.Repeat(" ", end-col))
			if index >= 0 {
				spot := labels[index]
				if spot.row == row {
					for offset, r := range spot.text {
						if at := spot.col + offset - col; at >= 0 && at < len(run) {
							run[at] = r
						}
					}
				}
				builder.WriteString(styles[index].Render(string(run)))
			} else {
				builder.WriteString(string(run))
			}
			col = end
		}
		if row < len(grid)-1 {
			builder.WriteByte('\n')
		}
	}
	return builder.String()
}

type labelSpot struct {
	row, col int
	text     []rune
}

func labelFor(tile treemap.Tile, width, height int) labelSpot {
	x0, y0 := roundCell(tile.Rect.X, width), roundCell(tile.Rect.Y, height)
	x1, y1 := roundCell(tile.Rect.X+tile.Rect.W, width), roundCell(tile.Rect.Y+tile.Rect.H, height)
	room := x1 - x0 - 1
	if room < 3 || y1 <= y0 {
		return labelSpot{row: -1}
	}
	text := []rune(tile.Label)
	if len(text) > room {
		text = append(text[:room-1], '…')
	}
	return labelSpot{row: y0, col: x0 + 1, text: text}
}
