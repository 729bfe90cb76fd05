package blob

import (
	"errors"
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"
)

// ErrInvalidDigest is returned when a digest string fails validation.
var ErrInvalidDigest = errors.New("blob: invalid digest")

const hashLength = 64

// Digest is a validated SHA-256 content digest.
//
// The zero value is invalid; construct digests with ParseDigest or
// NewDigestFromHash. Two byte-identical inputs always produce the same
// Digest, which makes it the universal key for content-addressed storage.
type Digest struct {
	d digest.Digest
}

// ParseDigest parses a digest in canonical "sha256:<64 hex chars>" form.
//
// Uppercase hex is normalized to lowercase before validation.
func ParseDigest(s string) (Digest, error) {
	algorithm, hash, ok := strings.Cut(s, ":")
	if !ok {
		return Digest{}, fmt.Errorf("%w: missing algorithm prefix in %q", ErrInvalidDigest, s)
	}
	if algorithm != string(digest.SHA256) {
		return Digest{}, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidDigest, algorithm)
	}
	return NewDigestFromHash(hash)
}

// NewDigestFromHash validates a bare 64-character hex hash.
func NewDigestFromHash(hash string) (Digest, error) {
	hash = strings.ToLower(hash)
	if len(hash) != hashLength {
		return Digest{}, fmt.Errorf("%w: hash %q has length %d, want %d", ErrInvalidDigest, hash, len(hash), hashLength)
	}
	for _, c := range hash {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return Digest{}, fmt.Errorf("%w: hash %q is not hexadecimal", ErrInvalidDigest, hash)
		}
	}
	return Digest{d: digest.NewDigestFromEncoded(digest.SHA256, hash)}, nil
}

// newDigest wraps a digest produced by the hashing pipeline.
// The input is trusted because it comes from digest.NewDigest.
func newDigest(d digest.Digest) Digest {
	return Digest{d: d}
}

// Hash returns the 64-character lowercase hex hash without the
// algorithm prefix.
func (d Digest) Hash() string {
	return d.d.Encoded()
}

// String returns the canonical "sha256:<hex>" form.
func (d Digest) String() string {
	return string(d.d)
}

// IsZero reports whether d is the invalid zero value.
func (d Digest) IsZero() bool {
	return d.d == ""
}

// MarshalText implements encoding.TextMarshaler using the canonical form.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.d), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, validating the input.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Descriptor is the content identity of a fully consumed blob.
//
// A Descriptor is only ever produced by writing a Blob to completion;
// it is never fabricated from partial reads.
type Descriptor struct {
	Digest Digest
	Size   int64
}
