// Package report assembles the media section of inspection reports: one
// 12-cell frame grid per checklist item, photos first, rendered to PDF.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/maauso/inspectmedia/internal/frames"
	"github.com/maauso/inspectmedia/internal/grid"
	"github.com/maauso/inspectmedia/internal/media"
	"github.com/maauso/inspectmedia/internal/photo"
)

// Page geometry in PDF points (A4 portrait).
const (
	PageWidth = 595.28
	Margin    = 15.0
	// pxPerPoint is the raster density of embedded grids.
	pxPerPoint = 2.0
)

// ErrNoItems is returned by WritePDF when no item ids are given.
var ErrNoItems = errors.New("no inspection items requested")

// VideoSampler samples still frames from a video.
type VideoSampler interface {
	Sample(ctx context.Context, path string, n int) frames.Set
}

// Builder turns checklist items into frame grids.
type Builder struct {
	store   MediaStore
	sampler VideoSampler
	count   int
	logger  *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithFrameCount sets the number of frames per item. Grids still show
// grid.Cells cells.
func WithFrameCount(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.count = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder creates a Builder.
func NewBuilder(store MediaStore, sampler VideoSampler, opts ...Option) *Builder {
	b := &Builder{
		store:   store,
		sampler: sampler,
		count:   frames.DefaultCount,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ItemFrames returns exactly the configured number of frames for an item.
// Photos take the first slots in attachment order; videos share what is
// left, each getting an equal part of the remaining budget rounded up.
// Slots that nothing fills are placeholders.
func (b *Builder) ItemFrames(ctx context.Context, itemID string) frames.Set {
	logger := b.logger.With(slog.String("item_id", itemID))
	set := make(frames.Set, 0, b.count)

	refs, err := b.store.ItemMedia(ctx, itemID)
	if err != nil {
		logger.Warn("load item media", slog.String("error", err.Error()))
		return b.pad(set)
	}

	var videos []MediaRef
	for _, ref := range refs {
		switch ref.Kind {
		case media.KindPhoto:
			if len(set) == b.count {
				continue
			}
			f, err := photo.Frame(len(set), ref.Path)
			if err != nil {
				logger.Warn("load photo", slog.String("path", ref.Path), slog.String("error", err.Error()))
			}
			set = append(set, f)
		case media.KindVideo:
			videos = append(videos, ref)
		}
	}

	for i, ref := range videos {
		remaining := b.count - len(set)
		if remaining <= 0 {
			break
		}
		if ctx.Err() != nil {
			break
		}
		left := len(videos) - i
		share := (remaining + left - 1) / left
		set = append(set, b.sampler.Sample(ctx, ref.Path, share)...)
	}

	return b.pad(set)
}

// pad fills set up to the frame count with placeholders and renumbers slots.
func (b *Builder) pad(set frames.Set) frames.Set {
	if len(set) > b.count {
		set = set[:b.count]
	}
	for len(set) < b.count {
		set = append(set, frames.PlaceholderFrame(len(set), frames.CanvasWidth, frames.CanvasHeight, "no media"))
	}
	return set.Renumber()
}

// ItemGrid lays out an item's frames at origin within availableWidth.
func (b *Builder) ItemGrid(ctx context.Context, itemID string, availableWidth float64, origin grid.Point) grid.Layout {
	return grid.Assemble(b.ItemFrames(ctx, itemID), availableWidth, origin)
}

// WritePDF writes one page per item, each holding the item's rendered grid.
// Items whose media cannot be loaded still get a full placeholder grid.
func (b *Builder) WritePDF(ctx context.Context, w io.Writer, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return ErrNoItems
	}

	pages := make([]io.Reader, 0, len(itemIDs))
	for _, id := range itemIDs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("build report: %w", err)
		}

		layout := b.ItemGrid(ctx, id, PageWidth-2*Margin, grid.Point{X: Margin, Y: Margin})
		var buf bytes.Buffer
		if err := png.Encode(&buf, grid.Render(layout, pxPerPoint)); err != nil {
			return fmt.Errorf("encode grid for %s: %w", id, err)
		}
		pages = append(pages, &buf)

		b.logger.Debug("item grid rendered",
			slog.String("item_id", id),
			slog.Int("placeholders", layout.Placeholders()),
		)
	}

	imp := pdfcpu.DefaultImportConfig()
	if err := api.ImportImages(nil, w, pages, imp, model.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("write report pdf: %w", err)
	}
	return nil
}
