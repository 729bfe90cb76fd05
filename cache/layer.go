package cache

import "github.com/meigma/kiln/blob"

// CachedLayer is a read-only handle to a layer persisted in the cache.
//
// Digest addresses the stored compressed artifact; DiffID addresses the
// logical uncompressed content referenced by image configs. Size is the
// compressed byte count. A CachedLayer is immutable once returned.
type CachedLayer struct {
	digest  blob.Digest
	diffID  blob.Digest
	size    int64
	content blob.Blob
}

// Digest returns the digest of the compressed layer bytes.
func (l CachedLayer) Digest() blob.Digest {
	return l.digest
}

// DiffID returns the digest of the uncompressed layer bytes.
func (l CachedLayer) DiffID() blob.Digest {
	return l.diffID
}

// Size returns the compressed size in bytes.
func (l CachedLayer) Size() int64 {
	return l.size
}

// Blob returns a re-readable blob streaming the compressed layer bytes
// from the cache.
func (l CachedLayer) Blob() blob.Blob {
	return l.content
}
