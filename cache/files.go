// Package cache persists build artifacts (layer blobs, selectors, local
// configs, and per-image metadata) in a content-addressed directory tree.
//
// The on-disk layout is stable and human-inspectable:
//
//	layers/<diffID>/<digest>    compressed layer blob
//	selectors/<selector>        one-line file holding a diffID hash
//	local/config/<digest>       locally built container config JSON
//	images/<reference>/manifests_configs.json
//	tmp/                        staging area for in-flight writes
//
// The ':' in an image reference is replaced with '!' to keep the path
// filesystem safe; the substitution is reversible for inspection tooling.
// External tools may read the tree directly, treating missing files as
// "not cached".
package cache

import (
	"path/filepath"
	"strings"

	"github.com/meigma/kiln/blob"
	"github.com/meigma/kiln/image"
)

const (
	layersDirectory      = "layers"
	selectorsDirectory   = "selectors"
	localDirectory       = "local"
	configDirectory      = "config"
	imagesDirectory      = "images"
	temporaryDirectory   = "tmp"
	metadataFilename     = "manifests_configs.json"
	referenceTagReplaced = '!'
)

// Files maps identity values to filesystem paths under a cache root.
//
// All methods are pure; nothing here touches the filesystem. Distinct
// digests, diff IDs, and selectors always map to distinct paths.
type Files struct {
	root string
}

// NewFiles returns the path layout rooted at root.
func NewFiles(root string) Files {
	return Files{root: root}
}

// Root returns the cache root directory.
func (f Files) Root() string {
	return f.root
}

// LayersDirectory returns the directory holding all layer blobs.
func (f Files) LayersDirectory() string {
	return filepath.Join(f.root, layersDirectory)
}

// LayerDirectory returns the directory for all compressed representations
// of the uncompressed content identified by diffID.
func (f Files) LayerDirectory(diffID blob.Digest) string {
	return filepath.Join(f.LayersDirectory(), diffID.Hash())
}

// LayerFile returns the path of the compressed layer blob addressed
// jointly by diffID then digest.
func (f Files) LayerFile(diffID, digest blob.Digest) string {
	return filepath.Join(f.LayerDirectory(diffID), digest.Hash())
}

// SelectorFile returns the path of the selector file mapping selector to
// a diffID.
func (f Files) SelectorFile(selector blob.Digest) string {
	return filepath.Join(f.root, selectorsDirectory, selector.Hash())
}

// LocalConfigFile returns the path of a locally built container
// configuration addressed by its own digest.
func (f Files) LocalConfigFile(digest blob.Digest) string {
	return filepath.Join(f.root, localDirectory, configDirectory, digest.Hash())
}

// ImageDirectory returns the metadata directory for an image reference.
func (f Files) ImageDirectory(ref image.Reference) string {
	return filepath.Join(f.root, imagesDirectory, filepath.FromSlash(EscapeReference(ref.String())))
}

// ImageMetadataFile returns the path of the per-image metadata bundle.
func (f Files) ImageMetadataFile(ref image.Reference) string {
	return filepath.Join(f.ImageDirectory(ref), metadataFilename)
}

// TemporaryDirectory returns the staging directory for in-flight writes.
// It lives under the cache root so renames into final paths never cross
// a filesystem boundary.
func (f Files) TemporaryDirectory() string {
	return filepath.Join(f.root, temporaryDirectory)
}

// EscapeReference substitutes the filesystem-unsafe tag separator ':'
// with '!', mapping each image reference to one predictable path segment.
func EscapeReference(ref string) string {
	return strings.ReplaceAll(ref, ":", string(referenceTagReplaced))
}

// UnescapeReference reverses EscapeReference for inspection tooling.
func UnescapeReference(path string) string {
	return strings.ReplaceAll(path, string(referenceTagReplaced), ":")
}
