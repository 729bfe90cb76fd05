package blob

import (
	"crypto/sha256"
	"hash"
	"io"

	"github.com/opencontainers/go-digest"
)

// DigestWriter wraps a writer and computes the SHA-256 digest and byte
// count of everything written through it.
type DigestWriter struct {
	w io.Writer
	h hash.Hash
	n int64
}

// NewDigestWriter returns a DigestWriter forwarding to w.
func NewDigestWriter(w io.Writer) *DigestWriter {
	return &DigestWriter{w: w, h: sha256.New()}
}

// Write implements io.Writer.
func (dw *DigestWriter) Write(p []byte) (int, error) {
	n, err := dw.w.Write(p)
	if n > 0 {
		dw.h.Write(p[:n]) // hash writes never fail
		dw.n += int64(n)
	}
	return n, err
}

// Descriptor returns the digest and size of the bytes written so far.
func (dw *DigestWriter) Descriptor() Descriptor {
	return Descriptor{
		Digest: newDigest(digest.NewDigest(digest.SHA256, dw.h)),
		Size:   dw.n,
	}
}

// DigestReader wraps a reader and computes the SHA-256 digest and byte
// count of everything read through it.
type DigestReader struct {
	r io.Reader
	h hash.Hash
	n int64
}

// NewDigestReader returns a DigestReader drawing from r.
func NewDigestReader(r io.Reader) *DigestReader {
	return &DigestReader{r: r, h: sha256.New()}
}

// Read implements io.Reader.
func (dr *DigestReader) Read(p []byte) (int, error) {
	n, err := dr.r.Read(p)
	if n > 0 {
		dr.h.Write(p[:n])
		dr.n += int64(n)
	}
	return n, err
}

// Descriptor returns the digest and size of the bytes read so far.
func (dr *DigestReader) Descriptor() Descriptor {
	return Descriptor{
		Digest: newDigest(digest.NewDigest(digest.SHA256, dr.h)),
		Size:   dr.n,
	}
}
