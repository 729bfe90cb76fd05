package kiln

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/meigma/kiln/blob"
	"github.com/meigma/kiln/cache"
	"github.com/meigma/kiln/image"
)

// Cache is the high-level handle to one build's artifact cache.
//
// A Cache owns its root directory for the duration of a build. Concurrent
// builds sharing a root stay correct for content-addressed artifacts;
// only same-reference metadata writes race (last writer wins).
type Cache struct {
	files  cache.Files
	writer *cache.Writer
	reader *cache.Reader
}

// Option configures a Cache.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// New opens (creating if necessary) a cache rooted at dir.
func New(dir string, opts ...Option) (*Cache, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("kiln: create cache root: %w", err)
	}
	files := cache.NewFiles(dir)
	return &Cache{
		files:  files,
		writer: cache.NewWriter(files, cache.WithLogger(cfg.logger)),
		reader: cache.NewReader(files),
	}, nil
}

// Files returns the cache's path layout.
func (c *Cache) Files() cache.Files {
	return c.files
}

// WriteCompressedLayer caches an already compressed layer blob, computing
// both its digest and diffID in a single streaming pass.
func (c *Cache) WriteCompressedLayer(compressedLayer blob.Blob) (cache.CachedLayer, error) {
	return c.writer.WriteCompressed(compressedLayer)
}

// WriteUncompressedLayer compresses and caches a layer blob, recording
// selector as an alternate key for its diffID.
func (c *Cache) WriteUncompressedLayer(uncompressedLayer blob.Blob, selector blob.Digest, opts ...cache.WriteOption) (cache.CachedLayer, error) {
	return c.writer.WriteUncompressed(uncompressedLayer, selector, opts...)
}

// WriteTarLayer caches a compressed layer whose diffID was already
// computed while building the tar.
func (c *Cache) WriteTarLayer(diffID blob.Digest, compressedLayer blob.Blob) (cache.CachedLayer, error) {
	return c.writer.WriteTarLayer(diffID, compressedLayer)
}

// WriteLocalConfig caches a locally built container configuration under
// the given digest.
func (c *Cache) WriteLocalConfig(digest blob.Digest, config *image.ContainerConfig) error {
	return c.writer.WriteLocalConfig(digest, config)
}

// WriteMetadata replaces the metadata bundle for an image reference.
func (c *Cache) WriteMetadata(ref image.Reference, metadata image.ImageMetadata) error {
	return c.writer.WriteMetadata(ref, metadata)
}

// RetrieveMetadata reads the metadata bundle for an image reference.
func (c *Cache) RetrieveMetadata(ref image.Reference) (image.ImageMetadata, bool, error) {
	return c.reader.RetrieveMetadata(ref)
}

// RetrieveTarLayer finds a cached layer by the digest of its uncompressed
// content.
func (c *Cache) RetrieveTarLayer(diffID blob.Digest) (cache.CachedLayer, bool, error) {
	return c.reader.RetrieveTarLayer(diffID)
}

// Select resolves a selector to the diffID it indexes, then retrieval can
// proceed via RetrieveTarLayer without re-hashing sources.
func (c *Cache) Select(selector blob.Digest) (blob.Digest, bool, error) {
	return c.reader.Select(selector)
}

// RetrieveLocalConfig reads a locally built container configuration by
// its digest.
func (c *Cache) RetrieveLocalConfig(digest blob.Digest) (*image.ContainerConfig, bool, error) {
	return c.reader.RetrieveLocalConfig(digest)
}
