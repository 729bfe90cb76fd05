package kiln

import (
	"github.com/meigma/kiln/blob"
	"github.com/meigma/kiln/cache"
	"github.com/meigma/kiln/compress"
	"github.com/meigma/kiln/image"
)

// Errors re-exported from the subpackages.
var (
	// ErrInvalidDigest is returned when a digest string fails validation.
	ErrInvalidDigest = blob.ErrInvalidDigest

	// ErrConsumed is returned when a single-use blob is written twice.
	ErrConsumed = blob.ErrConsumed

	// ErrUnknownFormat is returned when compression format detection fails,
	// in particular when supposedly compressed input is plain bytes.
	ErrUnknownFormat = compress.ErrUnknownFormat

	// ErrCorrupted is returned when the on-disk cache violates its layout
	// invariants.
	ErrCorrupted = cache.ErrCorrupted

	// ErrInvalidMetadata is returned when an image metadata bundle violates
	// its structural rules.
	ErrInvalidMetadata = image.ErrInvalidMetadata

	// ErrInvalidReference is returned when an image reference is malformed.
	ErrInvalidReference = image.ErrInvalidReference
)
