package frames

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/maauso/inspectmedia/internal/media"
	"github.com/maauso/inspectmedia/internal/metrics"
	"github.com/maauso/inspectmedia/internal/storage"
)

// DefaultTimeout bounds a whole sampling pass.
const DefaultTimeout = 10 * time.Second

// Placeholder reasons, also used as the second text line.
const (
	reasonInvalidSource = "video unavailable"
	reasonFailed        = "capture failed"
	reasonTimeout       = "timed out"
)

var (
	// errEmptyFrame is returned for decoded frames with no pixels.
	errEmptyFrame = errors.New("decoded frame has invalid dimensions")
	// errInvalidDuration is returned for sources without a finite positive length.
	errInvalidDuration = errors.New("invalid duration")
)

// Decoder is an open video that can be seeked frame by frame.
// Calls are made sequentially; implementations need not be concurrency safe.
type Decoder interface {
	// Duration in seconds.
	Duration() float64
	Dimensions() (width, height int)
	// FrameAt decodes the frame shown at seconds. It must return promptly
	// once ctx is done.
	FrameAt(ctx context.Context, seconds float64) (image.Image, error)
	Close() error
}

// Opener opens a Decoder for a file.
type Opener interface {
	Open(ctx context.Context, path string) (Decoder, error)
}

// Sampler extracts evenly spaced frames.
type Sampler struct {
	opener  Opener
	timeout time.Duration
	width   int
	height  int
	store   storage.Storage
	logger  *slog.Logger
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithTimeout sets the deadline for a whole Sample call.
func WithTimeout(d time.Duration) SamplerOption {
	return func(s *Sampler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithCanvas sets the output frame size.
func WithCanvas(w, h int) SamplerOption {
	return func(s *Sampler) {
		if w > 0 && h > 0 {
			s.width, s.height = w, h
		}
	}
}

// WithStorage sets where SampleReader spools its input.
func WithStorage(store storage.Storage) SamplerOption {
	return func(s *Sampler) {
		s.store = store
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SamplerOption {
	return func(s *Sampler) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSampler creates a Sampler reading videos through opener.
func NewSampler(opener Opener, opts ...SamplerOption) *Sampler {
	s := &Sampler{
		opener:  opener,
		timeout: DefaultTimeout,
		width:   CanvasWidth,
		height:  CanvasHeight,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Canvas returns the frame size produced by the sampler.
func (s *Sampler) Canvas() (w, h int) {
	return s.width, s.height
}

// state is a step of the capture loop.
type state int

const (
	stateIdle state = iota
	stateSeeking
	stateCaptured
	stateTimedOut
	stateDone
)

// capture owns the decoder and the frames of one Sample call.
type capture struct {
	dec    Decoder
	times  []float64
	frames Set
	next   int
	img    image.Image
}

// Sample returns exactly n frames from the video at path. It returns within
// the sampler timeout; slots still empty when it expires are placeholders.
func (s *Sampler) Sample(ctx context.Context, path string, n int) Set {
	if n <= 0 {
		return Set{}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	logger := s.logger.With(slog.String("path", path))

	dec, err := s.opener.Open(ctx, path)
	if err != nil {
		logger.Warn("open video for sampling", slog.String("error", err.Error()))
		return s.fill(make(Set, n), 0, reasonInvalidSource, "invalid_source")
	}
	defer func() {
		if err := dec.Close(); err != nil {
			logger.Debug("close decoder", slog.String("error", err.Error()))
		}
	}()

	d := dec.Duration()
	w, h := dec.Dimensions()
	if err := checkSource(d, w, h); err != nil {
		logger.Warn("video cannot be sampled", slog.String("error", err.Error()))
		return s.fill(make(Set, n), 0, reasonInvalidSource, "invalid_source")
	}

	c := &capture{dec: dec, times: Timestamps(d, n), frames: make(Set, n)}
	s.run(ctx, c, logger)
	return c.frames
}

// checkSource reports why a video of duration d seconds and size w x h
// cannot be sampled.
func checkSource(d float64, w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", media.ErrInvalidDimensions, w, h)
	}
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return fmt.Errorf("%w: %v", errInvalidDuration, d)
	}
	return nil
}

// run drives the capture state machine until every slot is filled.
func (s *Sampler) run(ctx context.Context, c *capture, logger *slog.Logger) {
	st := stateIdle
	for st != stateDone {
		switch st {
		case stateIdle:
			switch {
			case c.next == len(c.frames):
				st = stateDone
			case ctx.Err() != nil:
				st = stateTimedOut
			default:
				st = stateSeeking
			}

		case stateSeeking:
			img, err := seek(ctx, c.dec, c.times[c.next])
			switch {
			case ctx.Err() != nil:
				st = stateTimedOut
			case err != nil:
				logger.Warn("frame extraction failed",
					slog.String("error", (&ExtractionError{Slot: c.next, Timestamp: c.times[c.next], Err: err}).Error()),
				)
				c.frames[c.next] = PlaceholderFrame(c.next, s.width, s.height, reasonFailed)
				metrics.FramesSampled.WithLabelValues("failed").Inc()
				c.next++
				st = stateIdle
			default:
				c.img = img
				st = stateCaptured
			}

		case stateCaptured:
			c.frames[c.next] = Frame{Slot: c.next, Image: Fit(c.img, s.width, s.height), Source: SourceVideo}
			metrics.FramesSampled.WithLabelValues("captured").Inc()
			c.img = nil
			c.next++
			st = stateIdle

		case stateTimedOut:
			logger.Warn("frame sampling timed out",
				slog.Int("captured", c.next),
				slog.Int("remaining", len(c.frames)-c.next),
			)
			s.fill(c.frames, c.next, reasonTimeout, "timeout")
			c.next = len(c.frames)
			st = stateDone
		}
	}
}

// seek decodes one frame, turning panics and empty rasters into errors.
func seek(ctx context.Context, dec Decoder, t float64) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("decoder panic: %v", r)
		}
	}()

	img, err = dec.FrameAt(ctx, t)
	if err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, errEmptyFrame
	}
	return img, nil
}

// fill sets every slot from start on to a placeholder.
func (s *Sampler) fill(set Set, start int, reason, outcome string) Set {
	for i := start; i < len(set); i++ {
		set[i] = PlaceholderFrame(i, s.width, s.height, reason)
	}
	if n := len(set) - start; n > 0 {
		metrics.FramesSampled.WithLabelValues(outcome).Add(float64(n))
	}
	return set
}

// SampleReader spools r to a temporary file and samples it.
func (s *Sampler) SampleReader(ctx context.Context, r io.Reader, filename string, n int) (Set, error) {
	path, cleanup, err := s.spool(ctx, r, filename)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return s.Sample(ctx, path, n), nil
}

func (s *Sampler) spool(ctx context.Context, r io.Reader, filename string) (string, func(), error) {
	if s.store != nil {
		path, err := s.store.SaveTemp(ctx, "sample_"+filename, r)
		if err != nil {
			return "", nil, &media.IOError{Op: "spool video", Err: err}
		}
		return path, func() {
			_ = s.store.CleanupTemp(context.WithoutCancel(ctx), []string{path})
		}, nil
	}

	f, err := os.CreateTemp("", "sample_*")
	if err != nil {
		return "", nil, &media.IOError{Op: "spool video", Err: err}
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, &media.IOError{Op: "spool video", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, &media.IOError{Op: "spool video", Path: path, Err: err}
	}
	return path, cleanup, nil
}
