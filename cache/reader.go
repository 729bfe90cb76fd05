package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/meigma/kiln/blob"
	"github.com/meigma/kiln/image"
)

// ErrCorrupted is returned when the on-disk cache violates its own layout
// invariants, e.g. a layer directory holding multiple files or a selector
// file whose contents are not a digest hash.
var ErrCorrupted = errors.New("cache: corrupted")

// Reader retrieves cached artifacts. Missing files are reported as "not
// cached" (a false second return), never as errors; any external tool
// reading the layout directly should do the same.
type Reader struct {
	files Files
}

// NewReader returns a Reader over the given layout.
func NewReader(files Files) *Reader {
	return &Reader{files: files}
}

// RetrieveMetadata reads the metadata bundle for an image reference.
//
// A missing file means the image has not been cached. Malformed JSON is a
// read failure; no partial bundle is returned.
func (r *Reader) RetrieveMetadata(ref image.Reference) (image.ImageMetadata, bool, error) {
	raw, err := os.ReadFile(r.files.ImageMetadataFile(ref))
	if errors.Is(err, fs.ErrNotExist) {
		return image.ImageMetadata{}, false, nil
	}
	if err != nil {
		return image.ImageMetadata{}, false, fmt.Errorf("cache: read metadata for %s: %w", ref, err)
	}
	var metadata image.ImageMetadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return image.ImageMetadata{}, false, fmt.Errorf("cache: parse metadata for %s: %w", ref, err)
	}
	return metadata, true, nil
}

// RetrieveTarLayer finds the cached layer for an uncompressed content
// digest. The layer directory for a diffID holds one blob per compressed
// representation; more than one file is reported via ErrCorrupted because
// the reader cannot know which representation the build expects.
func (r *Reader) RetrieveTarLayer(diffID blob.Digest) (CachedLayer, bool, error) {
	dir := r.files.LayerDirectory(diffID)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return CachedLayer{}, false, nil
	}
	if err != nil {
		return CachedLayer{}, false, fmt.Errorf("cache: list layer directory: %w", err)
	}

	var files []fs.DirEntry
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry)
		}
	}
	if len(files) == 0 {
		return CachedLayer{}, false, nil
	}
	if len(files) > 1 {
		return CachedLayer{}, false, fmt.Errorf("%w: %d layer files for diffID %s, want 1",
			ErrCorrupted, len(files), diffID.Hash())
	}

	layerDigest, err := blob.NewDigestFromHash(files[0].Name())
	if err != nil {
		return CachedLayer{}, false, fmt.Errorf("%w: layer file name %q is not a digest hash: %v",
			ErrCorrupted, files[0].Name(), err)
	}
	info, err := files[0].Info()
	if err != nil {
		return CachedLayer{}, false, fmt.Errorf("cache: stat layer file: %w", err)
	}

	path := r.files.LayerFile(diffID, layerDigest)
	desc := blob.Descriptor{Digest: layerDigest, Size: info.Size()}
	return CachedLayer{
		digest:  layerDigest,
		diffID:  diffID,
		size:    info.Size(),
		content: blob.WithDescriptor(blob.FromFile(path), desc),
	}, true, nil
}

// Select resolves a selector to the diffID it indexes.
func (r *Reader) Select(selector blob.Digest) (blob.Digest, bool, error) {
	raw, err := os.ReadFile(r.files.SelectorFile(selector))
	if errors.Is(err, fs.ErrNotExist) {
		return blob.Digest{}, false, nil
	}
	if err != nil {
		return blob.Digest{}, false, fmt.Errorf("cache: read selector: %w", err)
	}
	diffID, err := blob.NewDigestFromHash(strings.TrimSpace(string(raw)))
	if err != nil {
		return blob.Digest{}, false, fmt.Errorf("%w: selector file %s does not hold a digest hash: %v",
			ErrCorrupted, selector.Hash(), err)
	}
	return diffID, true, nil
}

// RetrieveLocalConfig reads a locally built container configuration by
// its digest.
func (r *Reader) RetrieveLocalConfig(digest blob.Digest) (*image.ContainerConfig, bool, error) {
	raw, err := os.ReadFile(r.files.LocalConfigFile(digest))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: read local config: %w", err)
	}
	var config image.ContainerConfig
	if err := json.Unmarshal(raw, &config); err != nil {
		return nil, false, fmt.Errorf("cache: parse local config %s: %w", digest.Hash(), err)
	}
	return &config, true, nil
}
