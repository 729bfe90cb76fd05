// Package kiln is a content-addressable cache for container image build
// artifacts.
//
// kiln turns arbitrary file trees into reproducible, verifiable layer
// blobs and persists them, together with per-image manifest and
// configuration metadata, under a local cache root, without delegating
// to a container daemon. Layers are addressed by the digest of their
// compressed bytes and by the diffID of their uncompressed content, so a
// correct cache hit is guaranteed to reproduce the original bytes.
//
// The [Cache] type is the high-level entry point:
//
//	c, err := kiln.New("/var/cache/kiln")
//	if err != nil {
//	    return err
//	}
//	layer, err := c.WriteUncompressedLayer(layerTar, selector)
//
// The subpackages expose the individual pieces: [blob] for streaming
// digest computation, [tar] for deterministic archive construction,
// [compress] for the compression layer, [image] for manifest and config
// schemas, and [cache] for the writer, reader, and path layout.
//
// # Layout
//
// The cache root is a stable, human-inspectable format:
//
//	layers/<diffID>/<digest>            compressed layer blobs
//	selectors/<selector>                alternate keys onto diffIDs
//	local/config/<digest>               locally built configs
//	images/<reference>/manifests_configs.json
//
// External tooling may read it directly, treating missing files as
// "not cached".
//
// # Concurrency
//
// All operations are safe for concurrent use. Writes racing on the same
// digest persist at most one copy; callers should run independent layer
// writes in parallel, since compression dominates the cost.
package kiln
