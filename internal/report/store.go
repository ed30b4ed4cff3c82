package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/maauso/inspectmedia/internal/media"
)

// ErrItemNotFound is returned by a MediaStore for unknown item ids.
var ErrItemNotFound = errors.New("inspection item not found")

// MediaRef points at one photo or video attached to an inspection item.
type MediaRef struct {
	Kind media.Kind `yaml:"kind" json:"kind"`
	Path string     `yaml:"path" json:"path"`
}

// MediaStore is the checklist record store: it returns the media attached
// to an item, in attachment order.
type MediaStore interface {
	ItemMedia(ctx context.Context, itemID string) ([]MediaRef, error)
}

// manifest is the YAML document read by ManifestStore.
//
//	items:
//	  brake-pads:
//	    - kind: photo
//	      path: photos/front-left.jpg
//	    - kind: video
//	      path: videos/walkaround.mp4
type manifest struct {
	Items map[string][]MediaRef `yaml:"items"`
}

// ManifestStore is a read-only MediaStore backed by a YAML manifest.
// Relative media paths are resolved against the manifest's directory.
type ManifestStore struct {
	items map[string][]MediaRef
}

// Compile-time check that ManifestStore implements MediaStore.
var _ MediaStore = (*ManifestStore)(nil)

// LoadManifest reads a manifest file.
func LoadManifest(path string) (*ManifestStore, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseManifest(f, filepath.Dir(path))
}

// ParseManifest decodes a manifest, resolving relative paths against baseDir.
func ParseManifest(r io.Reader, baseDir string) (*ManifestStore, error) {
	var m manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	items := make(map[string][]MediaRef, len(m.Items))
	for id, refs := range m.Items {
		for i, ref := range refs {
			if !ref.Kind.IsValid() {
				return nil, fmt.Errorf("item %q media %d: unknown kind %q", id, i, ref.Kind)
			}
			if ref.Path == "" {
				return nil, fmt.Errorf("item %q media %d: empty path", id, i)
			}
			if !filepath.IsAbs(ref.Path) && baseDir != "" {
				refs[i].Path = filepath.Join(baseDir, ref.Path)
			}
		}
		items[id] = refs
	}
	return &ManifestStore{items: items}, nil
}

// ItemMedia implements MediaStore.
func (s *ManifestStore) ItemMedia(_ context.Context, itemID string) ([]MediaRef, error) {
	refs, ok := s.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	return append([]MediaRef(nil), refs...), nil
}

// ItemIDs returns every item id, sorted.
func (s *ManifestStore) ItemIDs() []string {
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
