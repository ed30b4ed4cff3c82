package transcode

import (
	"encoding/base64"
	"io"
	"os"
	"strings"

	"github.com/maauso/inspectmedia/internal/media"
)

const dataURIPrefix = "data:video/mp4;base64,"

// DataURI reads a processed clip and returns it as a base64 data URI.
func DataURI(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from a stored job
	if err != nil {
		return "", &media.IOError{Op: "open output", Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	var sb strings.Builder
	sb.WriteString(dataURIPrefix)
	enc := base64.NewEncoder(base64.StdEncoding, &sb)
	if _, err := io.Copy(enc, f); err != nil {
		return "", &media.IOError{Op: "encode output", Path: path, Err: err}
	}
	if err := enc.Close(); err != nil {
		return "", &media.IOError{Op: "encode output", Path: path, Err: err}
	}
	return sb.String(), nil
}
