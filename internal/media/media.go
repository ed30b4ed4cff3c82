// Package media provides the shared media types of the inspection pipeline
// and thin wrappers around the ffmpeg/ffprobe command line tools.
package media

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind distinguishes still photos from videos attached to an inspection item.
type Kind string

const (
	// KindPhoto is a still image.
	KindPhoto Kind = "photo"
	// KindVideo is a video clip.
	KindVideo Kind = "video"
)

// IsValid returns true if the kind is known.
func (k Kind) IsValid() bool {
	return k == KindPhoto || k == KindVideo
}

// AssetInfo is the metadata of an asset that can be checked without reading its content.
type AssetInfo struct {
	// Filename is the original client-side file name.
	Filename string
	// MIMEType is the declared content type.
	MIMEType string
	// Size is the byte size of the asset.
	Size int64
}

// Extension returns the lower-cased file extension without the leading dot.
func (i AssetInfo) Extension() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(i.Filename), "."))
}

// Asset is a media file owned by the pipeline for the duration of one job.
type Asset struct {
	AssetInfo
	// Kind is photo or video.
	Kind Kind
	// Data holds the raw bytes. It is released when the job terminates.
	Data []byte
}

// NewVideoAsset wraps raw upload bytes as a video asset.
func NewVideoAsset(filename, mimeType string, data []byte) *Asset {
	return &Asset{
		AssetInfo: AssetInfo{
			Filename: filename,
			MIMEType: mimeType,
			Size:     int64(len(data)),
		},
		Kind: KindVideo,
		Data: data,
	}
}

// Release drops the reference to the raw bytes.
func (a *Asset) Release() {
	a.Data = nil
}

// IOError reports a failed temp file operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
