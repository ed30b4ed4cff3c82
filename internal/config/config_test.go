package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/tmp/inspectmedia", cfg.TempDir)
	assert.Empty(t, cfg.OutputDir)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "ffprobe", cfg.FFprobePath)
	assert.Equal(t, int64(25<<20), cfg.LargeFileThreshold)
	assert.Equal(t, 12, cfg.FrameCount)
	assert.Equal(t, 10*time.Second, cfg.FrameTimeout)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.S3Enabled())

	assert.Equal(t, cfg, Defaults())
}

func TestLoad_CustomValues(t *testing.T) {
	cfg, err := load(envconfig.MapLookuper(map[string]string{
		"PORT":                 "3000",
		"TEMP_DIR":             "/custom/temp",
		"OUTPUT_DIR":           "/custom/out",
		"LARGE_FILE_THRESHOLD": "1048576",
		"FRAME_COUNT":          "8",
		"FRAME_TIMEOUT":        "2500ms",
		"MEDIA_MANIFEST":       "/etc/media.yaml",
		"S3_BUCKET":            "my-bucket",
		"S3_REGION":            "us-east-1",
		"LOG_FORMAT":           "json",
		"LOG_LEVEL":            "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/custom/temp", cfg.TempDir)
	assert.Equal(t, "/custom/out", cfg.OutputDir)
	assert.Equal(t, int64(1<<20), cfg.LargeFileThreshold)
	assert.Equal(t, 8, cfg.FrameCount)
	assert.Equal(t, 2500*time.Millisecond, cfg.FrameTimeout)
	assert.Equal(t, "/etc/media.yaml", cfg.MediaManifest)
	assert.True(t, cfg.S3Enabled())
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want error
	}{
		{"port out of range", map[string]string{"PORT": "70000"}, ErrInvalidPort},
		{"zero threshold", map[string]string{"LARGE_FILE_THRESHOLD": "0"}, ErrInvalidThreshold},
		{"negative frame count", map[string]string{"FRAME_COUNT": "-1"}, ErrInvalidFrameCount},
		{"bucket without region", map[string]string{"S3_BUCKET": "b"}, ErrS3RegionRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(envconfig.MapLookuper(tt.env))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("unparsable integer", func(t *testing.T) {
		_, err := load(envconfig.MapLookuper(map[string]string{"PORT": "not-a-number"}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config:")
	})
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("FRAME_COUNT", "6")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 6, cfg.FrameCount)
}

func TestConfig_String(t *testing.T) {
	cfg := Defaults()
	cfg.TempDir = "/tmp/test"
	cfg.S3Bucket = "bucket"
	cfg.AWSSecretAccessKey = "secret-key"

	str := cfg.String()

	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "/tmp/test")
	assert.Contains(t, str, "bucket")
	assert.NotContains(t, str, "secret-key")
}

func TestConfig_NewLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		cfg := &Config{LogFormat: format, LogLevel: "warn"}
		logger := cfg.NewLogger()
		require.NotNil(t, logger)
		assert.False(t, logger.Enabled(t.Context(), slog.LevelInfo))
		assert.True(t, logger.Enabled(t.Context(), slog.LevelWarn))
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
