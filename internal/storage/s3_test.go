package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testS3Config(endpoint string) S3Config {
	return S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}
}

func TestNewS3Storage(t *testing.T) {
	root := t.TempDir()

	storage, err := NewS3Storage(filepath.Join(root, "tmp"), filepath.Join(root, "out"), testS3Config("http://localhost:4566"))
	require.NoError(t, err)
	assert.Equal(t, "test-bucket", storage.bucket)
	assert.Equal(t, "us-east-1", storage.region)

	_, err = NewS3Storage(root, "", S3Config{Region: "us-east-1"})
	assert.ErrorIs(t, err, ErrS3NotConfigured)
}

func TestS3Storage_InheritsLocalStorage(t *testing.T) {
	root := t.TempDir()
	storage, err := NewS3Storage(filepath.Join(root, "tmp"), filepath.Join(root, "out"), testS3Config("http://localhost:4566"))
	require.NoError(t, err)

	ctx := context.Background()

	path, err := storage.SaveTemp(ctx, "test.mp4", bytes.NewReader([]byte("test data")))
	require.NoError(t, err)

	reader, err := storage.LoadTemp(ctx, path)
	require.NoError(t, err)
	content, err := io.ReadAll(reader)
	_ = reader.Close()
	require.NoError(t, err)
	assert.Equal(t, "test data", string(content))

	dst, err := storage.Persist(ctx, path, "kept.mp4")
	require.NoError(t, err)
	assert.FileExists(t, dst)

	require.NoError(t, storage.CleanupTemp(ctx, []string{dst}))
	_, err = os.Stat(dst)
	assert.True(t, os.IsNotExist(err))
}

func TestS3Storage_UploadToS3_MockServer(t *testing.T) {
	var gotPath, gotType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testS3Config(server.URL)
	cfg.KeyPrefix = "inspections/"

	root := t.TempDir()
	storage, err := NewS3Storage(filepath.Join(root, "tmp"), "", cfg)
	require.NoError(t, err)

	url, err := storage.UploadToS3(context.Background(), "media-1.mp4", bytes.NewReader([]byte("test content")))
	require.NoError(t, err)

	assert.Equal(t, "/test-bucket/inspections/media-1.mp4", gotPath)
	assert.Equal(t, "video/mp4", gotType)
	assert.Equal(t, "test content", gotBody)
	assert.Equal(t, server.URL+"/test-bucket/inspections/media-1.mp4", url)
}

func TestS3Storage_UploadToS3_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	cfg := testS3Config(server.URL)
	storage, err := NewS3Storage(t.TempDir(), "", cfg)
	require.NoError(t, err)

	_, err = storage.UploadToS3(context.Background(), "k", bytes.NewReader([]byte("x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload to S3")
}
