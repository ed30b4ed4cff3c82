package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/inspectmedia/internal/media"
	"github.com/maauso/inspectmedia/internal/progress"
	"github.com/maauso/inspectmedia/internal/storage"
)

type mockProber struct {
	mock.Mock
}

func (m *mockProber) Probe(ctx context.Context, path string) (*media.Info, error) {
	args := m.Called(ctx, path)
	info, _ := args.Get(0).(*media.Info)
	return info, args.Error(1)
}

// fakeFFmpeg writes an executable shell script standing in for ffmpeg.
// The script sees the output path as $out.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nfor out; do :; done\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

const succeedingFFmpeg = `echo "out_time_us=2000000"
echo "total_size=100"
echo "progress=continue"
echo "out_time_us=1000000"
echo "progress=continue"
echo "out_time_us=4000000"
echo "total_size=300"
echo "progress=end"
printf 'encoded-bytes' > "$out"`

type recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorder) record(e progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func newTestStorage(t *testing.T) *storage.LocalStorage {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewLocalStorage(filepath.Join(root, "tmp"), filepath.Join(root, "out"))
	require.NoError(t, err)
	return store
}

func assertNoTempFiles(t *testing.T, store *storage.LocalStorage) {
	t.Helper()
	entries, err := os.ReadDir(store.TempDir())
	require.NoError(t, err)
	var left []string
	for _, e := range entries {
		if !e.IsDir() {
			left = append(left, e.Name())
		}
	}
	assert.Empty(t, left, "temp files left behind")
}

func TestTranscode_Success(t *testing.T) {
	store := newTestStorage(t)
	prober := &mockProber{}
	prober.On("Probe", mock.Anything, mock.Anything).Return(&media.Info{Duration: 5}, nil)

	tr := New(store, prober, WithFFmpegPath(fakeFFmpeg(t, succeedingFFmpeg)))
	rec := &recorder{}

	input := bytes.Repeat([]byte("x"), 4096)
	res, err := tr.Transcode(context.Background(), bytes.NewReader(input), "walkaround.mov", "media-1.mp4", rec.record)
	require.NoError(t, err)

	assert.Equal(t, store.OutputPath("media-1.mp4"), res.OutputPath)
	assert.Equal(t, int64(4096), res.InputSize)
	assert.Equal(t, int64(len("encoded-bytes")), res.OutputSize)
	assert.InDelta(t, float64(13)/4096, res.CompressionRatio, 1e-9)
	assert.Equal(t, float64(5), res.Duration)

	content, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "encoded-bytes", string(content))

	var percents []float64
	for _, e := range rec.events {
		assert.Equal(t, progress.PhaseProcessing, e.Phase)
		percents = append(percents, e.Percent)
	}
	assert.Equal(t, []float64{0, 40, 40, 80, 100}, percents)
	assert.Equal(t, "00:00:02.00", rec.events[1].CurrentTime)
	assert.Equal(t, int64(300), rec.events[3].TargetSize)

	assertNoTempFiles(t, store)
	prober.AssertExpectations(t)
}

func TestTranscode_UnknownDuration(t *testing.T) {
	store := newTestStorage(t)
	prober := &mockProber{}
	prober.On("Probe", mock.Anything, mock.Anything).Return(nil, media.ErrFFprobeExecution)

	tr := New(store, prober, WithFFmpegPath(fakeFFmpeg(t, succeedingFFmpeg)))
	rec := &recorder{}

	_, err := tr.Transcode(context.Background(), strings.NewReader("data"), "a.mp4", "out.mp4", rec.record)
	require.NoError(t, err)

	last := rec.events[len(rec.events)-1]
	assert.Equal(t, float64(100), last.Percent)
	for _, e := range rec.events[:len(rec.events)-1] {
		assert.Zero(t, e.Percent)
	}
}

func TestTranscode_FFmpegFailure(t *testing.T) {
	store := newTestStorage(t)
	script := fakeFFmpeg(t, `echo "Input #0, mov" >&2
echo "moov atom not found" >&2
exit 1`)
	tr := New(store, nil, WithFFmpegPath(script))

	_, err := tr.Transcode(context.Background(), strings.NewReader("corrupt"), "a.mp4", "out.mp4", nil)
	require.Error(t, err)

	var terr *TranscodeError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "moov atom not found", terr.Message)
	assert.Contains(t, terr.Stderr, "Input #0")

	var ffErr *media.FFmpegError
	assert.ErrorAs(t, err, &ffErr)

	_, statErr := os.Stat(store.OutputPath("out.mp4"))
	assert.True(t, os.IsNotExist(statErr))
	assertNoTempFiles(t, store)
}

func TestTranscode_MissingBinary(t *testing.T) {
	store := newTestStorage(t)
	tr := New(store, nil, WithFFmpegPath("/nonexistent/ffmpeg"))

	_, err := tr.Transcode(context.Background(), strings.NewReader("data"), "a.mp4", "out.mp4", nil)

	var terr *TranscodeError
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, terr.Message, "start ffmpeg")
	assertNoTempFiles(t, store)
}

func TestTranscode_InputReadError(t *testing.T) {
	store := newTestStorage(t)
	tr := New(store, nil, WithFFmpegPath(fakeFFmpeg(t, succeedingFFmpeg)))

	_, err := tr.Transcode(context.Background(), iotestErrReader{}, "a.mp4", "out.mp4", nil)

	var ioErr *media.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "save input", ioErr.Op)
	assertNoTempFiles(t, store)
}

type iotestErrReader struct{}

func (iotestErrReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestStart_CancelKillsSubprocess(t *testing.T) {
	store := newTestStorage(t)
	script := fakeFFmpeg(t, `echo "progress=continue"
exec sleep 30`)
	tr := New(store, nil, WithFFmpegPath(script))

	task := tr.Start(context.Background(), strings.NewReader("data"), "a.mp4", "out.mp4")

	select {
	case <-task.Progress():
	case <-time.After(5 * time.Second):
		t.Fatal("no progress event")
	}

	started := time.Now()
	task.Cancel()
	_, err := task.Wait()

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(started), 10*time.Second)
	assertNoTempFiles(t, store)

	for range task.Progress() {
	}
}

func TestStart_DeliversProgressAndResult(t *testing.T) {
	store := newTestStorage(t)
	prober := &mockProber{}
	prober.On("Probe", mock.Anything, mock.Anything).Return(&media.Info{Duration: 5}, nil)
	tr := New(store, prober, WithFFmpegPath(fakeFFmpeg(t, succeedingFFmpeg)))

	task := tr.Start(context.Background(), strings.NewReader("data"), "a.mp4", "out.mp4")

	var last progress.Event
	for e := range task.Progress() {
		assert.GreaterOrEqual(t, e.Percent, last.Percent)
		last = e
	}
	res, err := task.Wait()
	require.NoError(t, err)
	assert.FileExists(t, res.OutputPath)
	assert.Equal(t, float64(100), last.Percent)
}

func TestTranscode_OneAtATime(t *testing.T) {
	store := newTestStorage(t)
	marker := filepath.Join(t.TempDir(), "running")
	script := fakeFFmpeg(t, fmt.Sprintf(`if [ -e %[1]q ]; then echo "overlap" >&2; exit 1; fi
touch %[1]q
sleep 0.2
rm %[1]q
printf 'ok' > "$out"`, marker))
	tr := New(store, nil, WithFFmpegPath(script), WithLockFile(filepath.Join(t.TempDir(), "transcode.lock")))

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = tr.Transcode(context.Background(), strings.NewReader("data"), "a.mp4", fmt.Sprintf("out-%d.mp4", i), nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestTranscode_ContextCancelledWhileWaitingForSlot(t *testing.T) {
	store := newTestStorage(t)
	tr := New(store, nil, WithFFmpegPath(fakeFFmpeg(t, succeedingFFmpeg)))
	tr.sem <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := tr.Transcode(ctx, strings.NewReader("data"), "a.mp4", "out.mp4", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assertNoTempFiles(t, store)
}

func TestDataURI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	uri, err := DataURI(path)
	require.NoError(t, err)
	assert.Equal(t, "data:video/mp4;base64,aGVsbG8=", uri)

	_, err = DataURI(filepath.Join(t.TempDir(), "missing.mp4"))
	var ioErr *media.IOError
	assert.ErrorAs(t, err, &ioErr)
}

func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH, skipping test")
	}
}

func TestTranscode_RealFFmpeg_StripsAudioAndCapsResolution(t *testing.T) {
	skipIfNoFFmpeg(t)

	src := filepath.Join(t.TempDir(), "source.mp4")
	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", "testsrc=s=1920x1080:r=60:d=4",
		"-f", "lavfi", "-i", "sine=frequency=440:d=4",
		"-c:v", "libx264", "-preset", "ultrafast", "-b:v", "8M",
		"-c:a", "aac", "-shortest", src,
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))

	store := newTestStorage(t)
	prober := media.NewFFprobe("")
	tr := New(store, prober)

	f, err := os.Open(src)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	tracker := progress.NewTracker(nil)
	res, err := tr.Transcode(context.Background(), f, "source.mp4", "result.mp4", tracker.Report)
	require.NoError(t, err)
	assert.Equal(t, float64(100), tracker.Percent())
	assert.Less(t, res.OutputSize, res.InputSize)

	info, err := prober.Probe(context.Background(), res.OutputPath)
	require.NoError(t, err)
	assert.False(t, info.HasAudio())
	require.NotNil(t, info.Video)
	assert.LessOrEqual(t, info.Video.Width, 1280)
	assert.LessOrEqual(t, info.Video.Height, 720)
	assert.LessOrEqual(t, info.Video.FPS, 30.0)

	// A clip this short may spend the whole VBV buffer on top of the cap;
	// allow 10% for container overhead on the format bitrate.
	capBits := float64(DefaultProfile().MaxBitrateKbps) * 1000
	require.Positive(t, info.Duration)
	limit := (capBits + 2*capBits/info.Duration) * 1.1
	assert.Positive(t, info.Bitrate)
	assert.LessOrEqual(t, float64(info.Bitrate), limit)
	assertNoTempFiles(t, store)
}
