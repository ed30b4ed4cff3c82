package bootstrap

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/inspectmedia/internal/config"
	"github.com/maauso/inspectmedia/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.TempDir = filepath.Join(t.TempDir(), "tmp")
	return cfg
}

func TestNewDependencies_Local(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)

	deps, err := NewDependencies(cfg, logger)
	require.NoError(t, err)

	assert.IsType(t, &storage.LocalStorage{}, deps.Storage)
	assert.NotNil(t, deps.VideoService)
	assert.NotNil(t, deps.Sampler)
	assert.Nil(t, deps.Reports)
	assert.Len(t, deps.HandlerOptions(), 2)
	assert.DirExists(t, filepath.Join(cfg.TempDir, "processed"))
}

func TestNewDependencies_S3(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)
	cfg.S3Bucket = "inspections"
	cfg.S3Region = "eu-west-1"
	cfg.AWSAccessKeyID = "key"
	cfg.AWSSecretAccessKey = "secret"

	deps, err := NewDependencies(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &storage.S3Storage{}, deps.Storage)
}

func TestNewDependencies_Manifest(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)

	dir := t.TempDir()
	cfg.MediaManifest = filepath.Join(dir, "media.yaml")
	require.NoError(t, os.WriteFile(cfg.MediaManifest, []byte("items:\n  item-1:\n    - kind: photo\n      path: a.jpg\n"), 0o600))

	deps, err := NewDependencies(cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, deps.Reports)
	assert.Len(t, deps.HandlerOptions(), 3)

	cfg.MediaManifest = filepath.Join(dir, "missing.yaml")
	_, err = NewDependencies(cfg, logger)
	assert.Error(t, err)
}
