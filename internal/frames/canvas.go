package frames

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Default video frame canvas.
const (
	CanvasWidth  = 400
	CanvasHeight = 300
)

var (
	placeholderFill   = color.NRGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}
	placeholderBorder = color.NRGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}
	placeholderText   = color.NRGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
)

const (
	borderInset = 10
	borderWidth = 2
	lineHeight  = 18
)

// Fit scales img to fit inside a w×h canvas without distortion and centers it
// on black. Smaller images are scaled up.
func Fit(img image.Image, w, h int) *image.NRGBA {
	dst := imaging.New(w, h, color.Black)
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return dst
	}

	scale := min(float64(w)/float64(b.Dx()), float64(h)/float64(b.Dy()))
	nw := max(1, int(float64(b.Dx())*scale+0.5))
	nh := max(1, int(float64(b.Dy())*scale+0.5))

	resized := imaging.Resize(img, min(nw, w), min(nh, h), imaging.Linear)
	return imaging.PasteCenter(dst, resized)
}

// Placeholder draws a light gray w×h card with an inset border and up to two
// centered lines of text.
func Placeholder(w, h int, lines ...string) *image.NRGBA {
	img := imaging.New(w, h, placeholderFill)

	inner := image.Rect(borderInset, borderInset, w-borderInset, h-borderInset)
	if inner.Dx() > 2*borderWidth && inner.Dy() > 2*borderWidth {
		strokeRect(img, inner, borderWidth, placeholderBorder)
	}

	if len(lines) > 2 {
		lines = lines[:2]
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(placeholderText),
		Face: basicfont.Face7x13,
	}
	top := h/2 - (len(lines)-1)*lineHeight/2
	for i, line := range lines {
		width := d.MeasureString(line).Round()
		d.Dot = fixed.P((w-width)/2, top+i*lineHeight+basicfont.Face7x13.Ascent/2)
		d.DrawString(line)
	}
	return img
}

func strokeRect(img draw.Image, r image.Rectangle, width int, c color.Color) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e, src, image.Point{}, draw.Src)
	}
}

// PlaceholderFrame returns a w×h placeholder Frame for slot.
func PlaceholderFrame(slot, w, h int, reason string) Frame {
	return Frame{
		Slot:        slot,
		Image:       Placeholder(w, h, "No frame available", reason),
		Placeholder: true,
		Source:      SourcePlaceholder,
	}
}
