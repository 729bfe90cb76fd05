package kiln

import (
	"github.com/meigma/kiln/blob"
	"github.com/meigma/kiln/cache"
	"github.com/meigma/kiln/compress"
	"github.com/meigma/kiln/image"
)

// --- Re-exports from blob ---

// Blob is a lazy, single-use producer of a byte stream.
type Blob = blob.Blob

// Digest is a validated SHA-256 content digest.
type Digest = blob.Digest

// Descriptor is the content identity of a fully consumed blob.
type Descriptor = blob.Descriptor

// --- Re-exports from cache ---

// CachedLayer is a read-only handle to a cached layer.
type CachedLayer = cache.CachedLayer

// --- Re-exports from compress ---

// Algorithm identifies a supported compression format.
type Algorithm = compress.Algorithm

// Compression constants.
const (
	Gzip = compress.Gzip
	Zstd = compress.Zstd
)

// --- Re-exports from image ---

// Reference is a parsed, normalized image reference.
type Reference = image.Reference

// ImageMetadata is the per-image metadata bundle.
type ImageMetadata = image.ImageMetadata

// ManifestAndConfig pairs a platform manifest with its configuration.
type ManifestAndConfig = image.ManifestAndConfig

// ContainerConfig is a container configuration document.
type ContainerConfig = image.ContainerConfig

// ParseReference parses and normalizes an image reference string.
var ParseReference = image.ParseReference

// ParseDigest parses a digest in canonical "sha256:<hex>" form.
var ParseDigest = blob.ParseDigest
