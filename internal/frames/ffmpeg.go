package frames

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strconv"

	"github.com/maauso/inspectmedia/internal/media"
)

// ErrNoFrame is returned when ffmpeg exits cleanly without producing a frame,
// which happens when seeking past the last keyframe of a truncated file.
var ErrNoFrame = errors.New("ffmpeg produced no frame")

// FFmpegOpener opens videos with ffprobe and decodes frames with one ffmpeg
// run per seek. Each run is bound to the caller's context.
type FFmpegOpener struct {
	ffmpegPath string
	prober     media.Prober
}

// NewFFmpegOpener creates an FFmpegOpener.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegOpener(ffmpegPath string, prober media.Prober) *FFmpegOpener {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegOpener{ffmpegPath: ffmpegPath, prober: prober}
}

// Open probes path. A file without a video stream fails with
// media.ErrNoVideoStream.
func (o *FFmpegOpener) Open(ctx context.Context, path string) (Decoder, error) {
	info, err := o.prober.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	if info.Video == nil {
		return nil, fmt.Errorf("open %s: %w", path, media.ErrNoVideoStream)
	}
	return &ffmpegDecoder{path: path, ffmpegPath: o.ffmpegPath, info: info}, nil
}

type ffmpegDecoder struct {
	path       string
	ffmpegPath string
	info       *media.Info
}

func (d *ffmpegDecoder) Duration() float64 {
	return d.info.Duration
}

func (d *ffmpegDecoder) Dimensions() (int, int) {
	if d.info.Video == nil {
		return 0, 0
	}
	return d.info.Video.Width, d.info.Video.Height
}

func (d *ffmpegDecoder) FrameAt(ctx context.Context, seconds float64) (image.Image, error) {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-ss", strconv.FormatFloat(seconds, 'f', 3, 64),
		"-i", d.path,
		"-frames:v", "1",
		"-an",
		"-f", "image2pipe",
		"-vcodec", "png",
		"pipe:1",
	}

	var out bytes.Buffer
	if err := media.RunFFmpeg(ctx, d.ffmpegPath, args, &out); err != nil {
		return nil, err
	}
	if out.Len() == 0 {
		return nil, ErrNoFrame
	}

	img, err := png.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

func (d *ffmpegDecoder) Close() error {
	return nil
}
