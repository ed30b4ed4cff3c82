package transcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maauso/inspectmedia/internal/progress"
)

func TestProfile_Args(t *testing.T) {
	args := DefaultProfile().Args("/tmp/in.mov", "/tmp/out.mp4")
	joined := strings.Join(args, " ")

	assert.Equal(t, "/tmp/out.mp4", args[len(args)-1])
	for _, want := range []string{
		"-i /tmp/in.mov",
		"-map 0:v:0",
		"-an -sn -dn",
		"-c:v libx264",
		"-maxrate 1000k",
		"-bufsize 2000k",
		"-fpsmax 30",
		"-movflags +faststart",
		"-progress pipe:1",
	} {
		assert.Contains(t, joined, want)
	}
	assert.Contains(t, joined, "min(1280,iw)")
	assert.Contains(t, joined, "min(720,ih)")

	p := DefaultProfile()
	p.FastStart = false
	assert.NotContains(t, strings.Join(p.Args("a", "b"), " "), "faststart")
}

func TestReadProgress(t *testing.T) {
	input := strings.Join([]string{
		"frame=10",
		"out_time_us=1500000",
		"total_size=2048",
		"out_time=00:00:01.500000",
		"progress=continue",
		"garbage line",
		"out_time_ms=N/A",
		"out_time_us=20000000",
		"progress=end",
	}, "\n")

	rec := &recorder{}
	assert.NoError(t, readProgress(strings.NewReader(input), 10, rec.record))

	if assert.Len(t, rec.events, 2) {
		assert.InDelta(t, 15, rec.events[0].Percent, 1e-9)
		assert.Equal(t, "00:00:01.50", rec.events[0].CurrentTime)
		assert.Equal(t, int64(2048), rec.events[0].TargetSize)
		assert.Equal(t, float64(99), rec.events[1].Percent)
		assert.Equal(t, progress.PhaseProcessing, rec.events[1].Phase)
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00:00.00", formatClock(0))
	assert.Equal(t, "01:02:03.45", formatClock(3723_450_000))
}
