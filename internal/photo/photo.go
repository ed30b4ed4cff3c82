// Package photo turns inspection photos into report frames.
package photo

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"time"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP format support

	"github.com/maauso/inspectmedia/internal/frames"
	"github.com/maauso/inspectmedia/internal/media"
)

// Photo frame canvas.
const (
	CanvasWidth  = 320
	CanvasHeight = 240
)

// Photo is a decoded image with its EXIF orientation already applied.
type Photo struct {
	Image  image.Image
	Format string
	// Orientation is the EXIF orientation tag (1-8), 1 when absent.
	Orientation int
	// Taken is the EXIF capture time, zero when absent.
	Taken time.Time
}

// Decode reads an image from r and rotates it upright.
func Decode(r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}

	p := &Photo{Image: img, Format: format, Orientation: 1}
	if x, err := exif.Decode(bytes.NewReader(data)); err == nil {
		if tag, err := x.Get(exif.Orientation); err == nil {
			if o, err := tag.Int(0); err == nil && o >= 1 && o <= 8 {
				p.Orientation = o
			}
		}
		if t, err := x.DateTime(); err == nil {
			p.Taken = t
		}
	}

	p.Image = orient(p.Image, p.Orientation)
	return p, nil
}

// Load decodes the photo stored at path.
func Load(path string) (*Photo, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from the media store
	if err != nil {
		return nil, &media.IOError{Op: "open photo", Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	return Decode(f)
}

// orient applies an EXIF orientation. imaging rotates counter-clockwise.
func orient(img image.Image, o int) image.Image {
	switch o {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// Canvas center-fits img on the black photo canvas.
func Canvas(img image.Image) *image.NRGBA {
	return frames.Fit(img, CanvasWidth, CanvasHeight)
}

// Frame loads the photo at path into a frame for slot. A photo that cannot be
// read becomes a placeholder; the error is returned for logging.
func Frame(slot int, path string) (frames.Frame, error) {
	p, err := Load(path)
	if err != nil {
		return frames.Frame{
			Slot:        slot,
			Image:       frames.Placeholder(CanvasWidth, CanvasHeight, "No photo available", "image unreadable"),
			Placeholder: true,
			Source:      frames.SourcePlaceholder,
		}, err
	}
	return frames.Frame{Slot: slot, Image: Canvas(p.Image), Source: frames.SourcePhoto}, nil
}
