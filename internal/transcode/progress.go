package transcode

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/maauso/inspectmedia/internal/progress"
)

// encoderState accumulates one block of ffmpeg -progress output.
// A block ends with a "progress=continue" or "progress=end" line.
type encoderState struct {
	outTimeUS int64
	totalSize int64
}

// readProgress parses ffmpeg -progress key=value lines from r and emits one
// event per block. duration is the input length in seconds; when it is not
// known the events carry position and size only. Percentages stay below 100
// here, the caller emits 100 once the output is in place.
func readProgress(r io.Reader, duration float64, emit progress.Func) error {
	var st encoderState

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}

		switch key {
		case "out_time_us", "out_time_ms": // both are microseconds
			if v, err := strconv.ParseInt(value, 10, 64); err == nil && v >= 0 {
				st.outTimeUS = v
			}
		case "total_size":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil && v >= 0 {
				st.totalSize = v
			}
		case "progress":
			emit.Emit(progress.Event{
				Phase:       progress.PhaseProcessing,
				Percent:     percentOf(st.outTimeUS, duration),
				CurrentTime: formatClock(st.outTimeUS),
				TargetSize:  st.totalSize,
			})
		}
	}
	return sc.Err()
}

func percentOf(outTimeUS int64, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	p := float64(outTimeUS) / (duration * 1e6) * 100
	return min(p, 99)
}

// formatClock renders microseconds as HH:MM:SS.cc.
func formatClock(us int64) string {
	cs := us / 10_000
	h := cs / 360_000
	m := cs / 6_000 % 60
	s := cs / 100 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%02d", h, m, s, cs%100)
}
