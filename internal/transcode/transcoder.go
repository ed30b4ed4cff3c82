// Package transcode re-encodes uploaded inspection videos into a small,
// audio-free MP4 by driving an external ffmpeg process.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/maauso/inspectmedia/internal/media"
	"github.com/maauso/inspectmedia/internal/progress"
	"github.com/maauso/inspectmedia/internal/storage"
)

// ErrLockBusy is returned when another process holds the transcode lock
// and the context ends before it is released.
var ErrLockBusy = errors.New("transcode lock is held by another process")

// waitDelay bounds how long Wait blocks on the subprocess pipes after the
// process has been killed.
const waitDelay = 3 * time.Second

// TranscodeError reports a failed ffmpeg run. It is terminal for the asset.
type TranscodeError struct {
	// Message is the human-readable reason, usually ffmpeg's last stderr line.
	Message string
	Stderr  string
	Err     error
}

func (e *TranscodeError) Error() string {
	return "transcode failed: " + e.Message
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// Result describes a finished transcode.
type Result struct {
	OutputPath string  `json:"outputPath"`
	InputSize  int64   `json:"inputSize"`
	OutputSize int64   `json:"outputSize"`
	Duration   float64 `json:"duration"`
	// CompressionRatio is OutputSize / InputSize.
	CompressionRatio float64 `json:"compressionRatio"`
}

// Transcoder runs one transcode at a time per process, and optionally one
// per host when a lock file is configured.
type Transcoder struct {
	store      storage.Storage
	prober     media.Prober
	ffmpegPath string
	profile    Profile
	logger     *slog.Logger
	lock       *flock.Flock
	sem        chan struct{}
}

// Option configures a Transcoder.
type Option func(*Transcoder)

// WithFFmpegPath sets the ffmpeg binary. Defaults to "ffmpeg".
func WithFFmpegPath(path string) Option {
	return func(t *Transcoder) {
		if path != "" {
			t.ffmpegPath = path
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transcoder) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithLockFile serialises transcodes across processes sharing path.
func WithLockFile(path string) Option {
	return func(t *Transcoder) {
		if path != "" {
			t.lock = flock.New(path)
		}
	}
}

// WithProfile overrides the output profile.
func WithProfile(p Profile) Option {
	return func(t *Transcoder) {
		t.profile = p
	}
}

// New creates a Transcoder. prober may be nil, in which case progress events
// carry no percentage until the run completes.
func New(store storage.Storage, prober media.Prober, opts ...Option) *Transcoder {
	t := &Transcoder{
		store:      store,
		prober:     prober,
		ffmpegPath: "ffmpeg",
		profile:    DefaultProfile(),
		logger:     slog.Default(),
		sem:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcode copies r to a temporary file, re-encodes it and stores the result
// under outputName in the output directory. fn receives processing events
// whose percent never decreases and ends at 100 on success. The temporary
// input and output are removed on every return path.
func (t *Transcoder) Transcode(ctx context.Context, r io.Reader, filename, outputName string, fn progress.Func) (*Result, error) {
	tracker := progress.NewTracker(fn)
	logger := t.logger.With(slog.String("filename", filename))

	var temps []string
	defer func() {
		if err := t.store.CleanupTemp(context.WithoutCancel(ctx), temps); err != nil {
			logger.Warn("cleanup temp files", slog.String("error", err.Error()))
		}
	}()

	inPath, err := t.store.SaveTemp(ctx, "input"+filepath.Ext(filename), r)
	if err != nil {
		return nil, ioError(ctx, "save input", "", err)
	}
	temps = append(temps, inPath)

	outTmp, err := t.store.ReserveTemp(ctx, "output.mp4")
	if err != nil {
		return nil, ioError(ctx, "reserve output", "", err)
	}
	temps = append(temps, outTmp)

	inInfo, err := os.Stat(inPath)
	if err != nil {
		return nil, &media.IOError{Op: "stat input", Path: inPath, Err: err}
	}

	duration := t.duration(ctx, inPath, logger)
	tracker.Report(progress.Event{Phase: progress.PhaseProcessing, Percent: 0})

	release, err := t.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	logger.Info("transcode started",
		slog.Int64("input_size", inInfo.Size()),
		slog.Float64("duration", duration),
	)

	if err := t.run(ctx, inPath, outTmp, duration, tracker.Func()); err != nil {
		return nil, err
	}

	outPath, err := t.store.Persist(ctx, outTmp, outputName)
	if err != nil {
		return nil, ioError(ctx, "persist output", outputName, err)
	}
	outInfo, err := os.Stat(outPath)
	if err != nil {
		return nil, &media.IOError{Op: "stat output", Path: outPath, Err: err}
	}

	res := &Result{
		OutputPath: outPath,
		InputSize:  inInfo.Size(),
		OutputSize: outInfo.Size(),
		Duration:   duration,
	}
	if res.InputSize > 0 {
		res.CompressionRatio = float64(res.OutputSize) / float64(res.InputSize)
	}

	tracker.Report(progress.Event{Phase: progress.PhaseProcessing, Percent: 100, TargetSize: res.OutputSize})
	logger.Info("transcode completed",
		slog.String("output", outPath),
		slog.Int64("output_size", res.OutputSize),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// duration returns the input length in seconds, or 0 when it cannot be probed.
// Corrupt inputs are reported by ffmpeg itself.
func (t *Transcoder) duration(ctx context.Context, path string, logger *slog.Logger) float64 {
	if t.prober == nil {
		return 0
	}
	info, err := t.prober.Probe(ctx, path)
	if err != nil {
		logger.Warn("probe input", slog.String("error", err.Error()))
		return 0
	}
	return info.Duration
}

// acquire takes the in-process slot and, if configured, the host-wide lock.
func (t *Transcoder) acquire(ctx context.Context) (func(), error) {
	select {
	case t.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for transcode slot: %w", ctx.Err())
	}

	if t.lock == nil {
		return func() { <-t.sem }, nil
	}

	locked, err := t.lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil || !locked {
		<-t.sem
		if err == nil {
			err = ErrLockBusy
		}
		return nil, fmt.Errorf("acquire transcode lock: %w", err)
	}

	return func() {
		if err := t.lock.Unlock(); err != nil {
			t.logger.Warn("release transcode lock", slog.String("error", err.Error()))
		}
		<-t.sem
	}, nil
}

func (t *Transcoder) run(ctx context.Context, inPath, outPath string, duration float64, fn progress.Func) error {
	args := t.profile.Args(inPath, outPath)

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	cmd.WaitDelay = waitDelay

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &TranscodeError{Message: "open ffmpeg stdout", Err: err}
	}

	if err := cmd.Start(); err != nil {
		return &TranscodeError{Message: "start ffmpeg: " + err.Error(), Err: err}
	}

	if err := readProgress(stdout, duration, fn); err != nil {
		t.logger.Debug("read ffmpeg progress", slog.String("error", err.Error()))
	}
	// Drain so Wait never blocks on a full pipe after a parse error.
	_, _ = io.Copy(io.Discard, stdout)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("transcode cancelled: %w", ctx.Err())
		}
		ffErr := &media.FFmpegError{Args: args, Stderr: stderr.String(), Err: err}
		return &TranscodeError{Message: ffErr.LastLine(), Stderr: ffErr.Stderr, Err: ffErr}
	}
	return nil
}

// ioError wraps a storage failure, keeping cancellation distinguishable.
func ioError(ctx context.Context, op, path string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	return &media.IOError{Op: op, Path: path, Err: err}
}
