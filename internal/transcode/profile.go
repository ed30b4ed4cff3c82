package transcode

import (
	"fmt"
	"strconv"
)

// Profile is the fixed output policy applied to every video.
type Profile struct {
	VideoCodec string
	Preset     string
	CRF        int
	// MaxBitrateKbps caps the video bitrate. The VBV buffer is twice this value.
	MaxBitrateKbps int
	MaxWidth       int
	MaxHeight      int
	MaxFPS         int
	// FastStart moves the moov atom to the front of the file.
	FastStart bool
}

// DefaultProfile returns the delivery profile used for inspection clips:
// H.264, at most 1000 kbps, 1280x720 and 30 fps, no audio.
func DefaultProfile() Profile {
	return Profile{
		VideoCodec:     "libx264",
		Preset:         "fast",
		CRF:            23,
		MaxBitrateKbps: 1000,
		MaxWidth:       1280,
		MaxHeight:      720,
		MaxFPS:         30,
		FastStart:      true,
	}
}

// ScaleFilter returns a filter that shrinks frames to fit the resolution cap
// while keeping the aspect ratio. Frames that already fit are left alone;
// dimensions are rounded to even values as yuv420p requires.
func (p Profile) ScaleFilter() string {
	return fmt.Sprintf(
		"scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease:force_divisible_by=2",
		p.MaxWidth, p.MaxHeight,
	)
}

// Args builds the ffmpeg argument list. The output path is always last.
// Progress is written as key=value lines to stdout.
func (p Profile) Args(input, output string) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-nostdin",
		"-progress", "pipe:1",
		"-nostats",
		"-i", input,
		"-map", "0:v:0",
		"-an", "-sn", "-dn",
		"-c:v", p.VideoCodec,
		"-preset", p.Preset,
		"-crf", strconv.Itoa(p.CRF),
		"-maxrate", strconv.Itoa(p.MaxBitrateKbps) + "k",
		"-bufsize", strconv.Itoa(2*p.MaxBitrateKbps) + "k",
		"-vf", p.ScaleFilter(),
		"-fpsmax", strconv.Itoa(p.MaxFPS),
		"-pix_fmt", "yuv420p",
	}
	if p.FastStart {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, "-f", "mp4", output)
}
