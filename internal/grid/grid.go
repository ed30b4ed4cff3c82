// Package grid lays report frames out on a fixed 3×4 grid.
//
// Layout is pure arithmetic on the available width and the origin, so the
// same input always yields the same coordinates. Units are whatever the
// document uses (points for PDF pages); Render rasterises a layout.
package grid

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/maauso/inspectmedia/internal/frames"
)

// Fixed grid geometry.
const (
	Rows  = 3
	Cols  = 4
	Cells = Rows * Cols

	// Spacing separates adjacent cells horizontally and vertically.
	Spacing = 3.0
	// AspectRatio is cell height over cell width.
	AspectRatio = 0.75
	// BottomGap is left between the grid and the next document block.
	BottomGap = 10.0
)

// Point is a position in document units.
type Point struct {
	X, Y float64
}

// Cell is one positioned frame.
type Cell struct {
	Index  int
	Row    int
	Col    int
	X      float64
	Y      float64
	Width  float64
	Height float64
	Frame  frames.Frame
}

// Layout is a fully positioned grid.
type Layout struct {
	Origin     Point
	CellWidth  float64
	CellHeight float64
	// Width and Height span the cells, without BottomGap.
	Width  float64
	Height float64
	Cells  []Cell
	// NextY is where the document should continue below the grid.
	NextY float64
}

// CellSize returns the cell dimensions for an available width.
func CellSize(availableWidth float64) (w, h float64) {
	w = math.Max(0, (availableWidth-Spacing*(Cols-1))/Cols)
	return w, w * AspectRatio
}

// Assemble places up to Cells frames row-major from origin. Missing slots are
// filled with placeholders and extra frames are dropped.
func Assemble(set frames.Set, availableWidth float64, origin Point) Layout {
	w, h := CellSize(availableWidth)

	l := Layout{
		Origin:     origin,
		CellWidth:  w,
		CellHeight: h,
		Width:      Cols*w + (Cols-1)*Spacing,
		Height:     Rows*h + (Rows-1)*Spacing,
		Cells:      make([]Cell, Cells),
	}

	for i := range l.Cells {
		row, col := i/Cols, i%Cols

		var f frames.Frame
		if i < len(set) && set[i].Image != nil {
			f = set[i]
		} else {
			f = frames.PlaceholderFrame(i, frames.CanvasWidth, frames.CanvasHeight, "no media")
		}
		f.Slot = i

		l.Cells[i] = Cell{
			Index:  i,
			Row:    row,
			Col:    col,
			X:      origin.X + float64(col)*(w+Spacing),
			Y:      origin.Y + float64(row)*(h+Spacing),
			Width:  w,
			Height: h,
			Frame:  f,
		}
	}

	l.NextY = origin.Y + l.Height + BottomGap
	return l
}

// Placeholders counts cells holding placeholder frames.
func (l Layout) Placeholders() int {
	n := 0
	for _, c := range l.Cells {
		if c.Frame.Placeholder {
			n++
		}
	}
	return n
}

// Render rasterises the grid region on white at pxPerUnit pixels per
// document unit. Cell positions are relative to the layout origin.
func Render(l Layout, pxPerUnit float64) *image.NRGBA {
	if pxPerUnit <= 0 {
		pxPerUnit = 1
	}
	px := func(v float64) int { return int(math.Round(v * pxPerUnit)) }

	dst := imaging.New(max(1, px(l.Width)), max(1, px(l.Height)), color.White)
	for _, c := range l.Cells {
		x0, y0 := px(c.X-l.Origin.X), px(c.Y-l.Origin.Y)
		x1, y1 := px(c.X-l.Origin.X+c.Width), px(c.Y-l.Origin.Y+c.Height)
		if x1 <= x0 || y1 <= y0 || c.Frame.Image == nil {
			continue
		}
		cell := imaging.Resize(c.Frame.Image, x1-x0, y1-y0, imaging.Linear)
		dst = imaging.Paste(dst, cell, image.Pt(x0, y0))
	}
	return dst
}
