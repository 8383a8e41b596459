// Package render draws treemap tiles as a PNG image.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"tonic/internal/domain"
	"tonic/internal/treemap"
)

var background = color.NRGBA{24, 24, 27, 255}

var domainColors = map[domain.Domain]color.NRGBA{
	domain.DomainSystem:       {185, 28, 28, 255},
	domain.DomainApplications: {180, 83, 9, 255},
	domain.DomainUserFiles:    {37, 99, 235, 255},
	domain.DomainDeveloper:    {22, 163, 74, 255},
	domain.DomainCloud:        {8, 145, 178, 255},
	domain.DomainOther:        {113, 113, 122, 255},
}

// DomainColor is the fill used for tiles of the given domain.
func DomainColor(value domain.Domain) color.NRGBA {
	if fill, ok := domainColors[value]; ok {
		return fill
	}
	return domainColors[domain.DomainOther]
}

// Tile pairs a laid-out rectangle with the node it stands for.
type Tile struct {
	Rect  treemap.Rect
	Label string
	Fill  color.Color
}

type Options struct {
	Width  int
	Height int
	// Padding is the gap in pixels left around each tile.
	Padding int
}

// Image paints tiles into a new RGBA image. Labels are drawn only where the
// tile is large enough to hold them.
func Image(tiles []Tile, options Options) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, options.Width, options.Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	for _, tile := range tiles {
		rect := tile.Rect.Inset(float64(options.Padding))
		bounds := image.Rect(
			int(math.Round(rect.X)),
			int(math.Round(rect.Y)),
			int(math.Round(rect.X+rect.W)),
			int(math.Round(rect.Y+rect.H)),
		).Intersect(canvas.Bounds())
		if bounds.Empty() {
			continue
		}
		fill := tile.Fill
		if fill == nil {
			fill = DomainColor(domain.DomainOther)
		}
		draw.Draw(canvas, bounds, image.NewUniform(fill), image.Point{}, draw.Src)

		label := fitLabel(face, tile.Label, bounds.Dx()-4)
		if label == "" || bounds.Dy() < face.Height+2 {
			continue
		}
		drawer := &font.Drawer{
			Dst:  canvas,
			Src:  image.NewUniform(color.White),
			Face: face,
			Dot:  fixed.P(bounds.Min.X+2, bounds.Min.Y+face.Ascent+1),
		}
		drawer.DrawString(label)
	}
	return canvas
}

// WritePNG renders tiles and encodes them to writer.
func WritePNG(writer io.Writer, tiles []Tile, options Options) error {
	if options.Width <= 0 || options.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", options.Width, options.Height)
	}
	if err := png.Encode(writer, Image(tiles, options)); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// fitLabel truncates label so it measures at most width pixels.
func fitLabel(face font.Face, label string, width int) string {
	if width <= 0 {
		return ""
	}
	limit := fixed.I(width)
	if font.MeasureString(face, label) <= limit {
		return label
	}
	runes := []rune(label)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + "~"
		if font.MeasureString(face, candidate) <= limit {
			return candidate
		}
	}
	return ""
}
