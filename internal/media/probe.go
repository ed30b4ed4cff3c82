package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Prober extracts container and stream information from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*Info, error)
}

// VideoStream describes the first video stream of a file.
type VideoStream struct {
	Codec  string  `json:"codec"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	FPS    float64 `json:"fps"`
}

// AudioStream describes the first audio stream of a file.
type AudioStream struct {
	Codec   string `json:"codec"`
	Bitrate int64  `json:"bitrate"`
}

// Info is the subset of ffprobe output the pipeline relies on.
type Info struct {
	// Duration in seconds. Zero when the container does not report one.
	Duration float64      `json:"duration"`
	Size     int64        `json:"size"`
	Bitrate  int64        `json:"bitrate"`
	Video    *VideoStream `json:"video,omitempty"`
	Audio    *AudioStream `json:"audio,omitempty"`
	// AudioStreams counts every audio stream in the file.
	AudioStreams int `json:"audioStreams"`
}

// HasAudio reports whether the file carries at least one audio stream.
func (i *Info) HasAudio() bool {
	return i.AudioStreams > 0
}

// FFprobe implements Prober using the ffprobe CLI.
type FFprobe struct {
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewFFprobe creates a new FFprobe.
// If ffprobePath is empty, it defaults to "ffprobe" (found via PATH).
func NewFFprobe(ffprobePath string) *FFprobe {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFprobe{ffprobePath: ffprobePath}
}

// Probe runs ffprobe on path and parses its JSON report.
func (p *FFprobe) Probe(ctx context.Context, path string) (*Info, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, strings.TrimSpace(stderr.String()))
	}

	return ParseProbeOutput(stdout.Bytes())
}

// ParseProbeOutput parses the JSON written by
// `ffprobe -print_format json -show_format -show_streams`.
func ParseProbeOutput(data []byte) (*Info, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON output", ErrFFprobeExecution)
	}

	doc := gjson.ParseBytes(data)
	info := &Info{
		Duration: doc.Get("format.duration").Float(),
		Size:     doc.Get("format.size").Int(),
		Bitrate:  doc.Get("format.bit_rate").Int(),
	}

	if v := doc.Get(`streams.#(codec_type=="video")`); v.Exists() {
		info.Video = &VideoStream{
			Codec:  v.Get("codec_name").String(),
			Width:  int(v.Get("width").Int()),
			Height: int(v.Get("height").Int()),
			FPS:    parseFrameRate(v.Get("r_frame_rate").String()),
		}
		if info.Duration <= 0 {
			info.Duration = v.Get("duration").Float()
		}
	}

	audio := doc.Get(`streams.#(codec_type=="audio")#`)
	info.AudioStreams = len(audio.Array())
	if info.AudioStreams > 0 {
		first := audio.Array()[0]
		info.Audio = &AudioStream{
			Codec:   first.Get("codec_name").String(),
			Bitrate: first.Get("bit_rate").Int(),
		}
	}

	return info, nil
}

// parseFrameRate converts ffprobe rationals such as "30000/1001" to a float.
func parseFrameRate(rate string) float64 {
	num, den, ok := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
