// Package frames samples a fixed number of still frames from a video for
// report grids. Sampling never fails: any frame that cannot be captured is
// replaced by a placeholder, so a Set always has the requested length.
package frames

import (
	"fmt"
	"image"
)

// DefaultCount is the number of frames per inspection item.
const DefaultCount = 12

// Source tells where a frame came from.
type Source string

const (
	SourcePhoto       Source = "photo"
	SourceVideo       Source = "video"
	SourcePlaceholder Source = "placeholder"
)

// Frame is one raster in a Set.
type Frame struct {
	Slot        int
	Image       image.Image
	Placeholder bool
	Source      Source
}

// Set is an ordered list of frames indexed by slot.
type Set []Frame

// Placeholders counts the placeholder frames in s.
func (s Set) Placeholders() int {
	n := 0
	for _, f := range s {
		if f.Placeholder {
			n++
		}
	}
	return n
}

// Renumber sets each frame's Slot to its index.
func (s Set) Renumber() Set {
	for i := range s {
		s[i].Slot = i
	}
	return s
}

// ExtractionError describes a frame that could not be captured.
// It is logged, never returned.
type ExtractionError struct {
	Slot      int
	Timestamp float64
	Err       error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract frame %d at %.3fs: %v", e.Slot, e.Timestamp, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Timestamps returns n instants evenly spaced at duration/(n+1), excluding
// both ends of the video.
func Timestamps(duration float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	step := duration / float64(n+1)
	out := make([]float64, n)
	for k := range out {
		out[k] = float64(k+1) * step
	}
	return out
}
