// Package ingest feeds uploads to the transcoder, reading large inputs in
// fixed-size chunks so callers get one progress bar across both phases.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/maauso/inspectmedia/internal/media"
	"github.com/maauso/inspectmedia/internal/progress"
	"github.com/maauso/inspectmedia/internal/transcode"
)

const (
	// ChunkSize is the read size for large inputs.
	ChunkSize = 1 << 20
	// DefaultThreshold is the size above which inputs are read in chunks.
	DefaultThreshold int64 = 25 << 20
	// MaxBuffered bounds the declared size of a chunked input.
	MaxBuffered int64 = 100 << 20
)

// ErrTooLarge is returned when a chunked input declares more than MaxBuffered bytes.
var ErrTooLarge = errors.New("input exceeds the ingest buffer limit")

// Transcoder is the part of transcode.Transcoder the ingestor drives.
type Transcoder interface {
	Transcode(ctx context.Context, r io.Reader, filename, outputName string, fn progress.Func) (*transcode.Result, error)
}

// Ingestor routes inputs to the transcoder by size.
type Ingestor struct {
	transcoder Transcoder
	threshold  int64
	logger     *slog.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithThreshold sets the chunked-read threshold in bytes.
func WithThreshold(n int64) Option {
	return func(i *Ingestor) {
		if n > 0 {
			i.threshold = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Ingestor) {
		if l != nil {
			i.logger = l
		}
	}
}

// New creates an Ingestor.
func New(t Transcoder, opts ...Option) *Ingestor {
	i := &Ingestor{
		transcoder: t,
		threshold:  DefaultThreshold,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Threshold returns the chunked-read threshold in bytes.
func (i *Ingestor) Threshold() int64 {
	return i.threshold
}

// Process transcodes size bytes from r. Inputs above the threshold are read
// in ChunkSize pieces into a single buffer first, reporting "reading" from 0
// to 50 and "processing" from 50 to 100. Smaller inputs go straight to the
// transcoder with "processing" from 0 to 100. Percent never decreases.
func (i *Ingestor) Process(ctx context.Context, r io.Reader, size int64, filename, outputName string, fn progress.Func) (*transcode.Result, error) {
	tracker := progress.NewTracker(fn)

	if size <= i.threshold {
		return i.transcoder.Transcode(ctx, r, filename, outputName,
			progress.Scale(tracker.Func(), progress.PhaseProcessing, 0, 100))
	}

	i.logger.Info("reading large input in chunks",
		slog.String("filename", filename),
		slog.Int64("size", size),
		slog.Int("chunk_size", ChunkSize),
	)

	buf, err := readChunks(ctx, r, size, progress.Scale(tracker.Func(), progress.PhaseReading, 0, 50))
	if err != nil {
		return nil, err
	}

	return i.transcoder.Transcode(ctx, bytes.NewReader(buf), filename, outputName,
		progress.Scale(tracker.Func(), progress.PhaseProcessing, 50, 100))
}

// readChunks reads exactly size bytes from r into one buffer, emitting a
// 0..100 event after each chunk.
func readChunks(ctx context.Context, r io.Reader, size int64, fn progress.Func) ([]byte, error) {
	if size > MaxBuffered {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}

	buf := make([]byte, size)
	var off int64
	for off < size {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}

		end := min(off+ChunkSize, size)
		n, err := io.ReadFull(r, buf[off:end])
		off += int64(n)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, &media.IOError{
				Op:  "read input",
				Err: fmt.Errorf("got %d of %d bytes: %w", off, size, err),
			}
		}

		fn.Emit(progress.Event{Percent: float64(off) / float64(size) * 100})
	}
	return buf, nil
}
