// Package blob provides lazily produced, streamable byte sequences and the
// digest bookkeeping needed to address them by content.
//
// A Blob is consumed by writing it to exactly one sink; the act of writing
// returns a Descriptor holding the SHA-256 digest and byte size of the
// content. Digest computation is single-pass and streaming: content is never
// buffered in memory to be hashed, so multi-gigabyte blobs stream straight
// to their destination.
package blob

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrConsumed is returned when a single-use blob is written a second time.
var ErrConsumed = errors.New("blob: already consumed")

// Blob is a lazy producer of a byte stream.
//
// WriteTo streams the content to w and reports the descriptor of the bytes
// written. Blobs backed by re-readable sources (bytes, files, functions) may
// be written any number of times; reader-backed blobs fail with ErrConsumed
// on the second write. If the sink write fails, no descriptor is produced
// and any partial output at the destination must not be treated as valid.
type Blob interface {
	WriteTo(w io.Writer) (Descriptor, error)
}

// FromBytes returns a re-readable Blob over b.
func FromBytes(b []byte) Blob {
	return FromFunc(func(w io.Writer) error {
		_, err := w.Write(b)
		return err
	})
}

// FromString returns a re-readable Blob over the bytes of s.
func FromString(s string) Blob {
	return FromFunc(func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader([]byte(s)))
		return err
	})
}

// FromFile returns a re-readable Blob that opens path on each write.
func FromFile(path string) Blob {
	return FromFunc(func(w io.Writer) error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
}

// FromReader returns a single-use Blob over r.
//
// The second and subsequent writes fail with ErrConsumed; r is read to
// completion on the first write but not closed.
func FromReader(r io.Reader) Blob {
	return &readerBlob{r: r}
}

// FromFunc returns a Blob that invokes writable for each write.
//
// The function is re-invoked on every WriteTo call, so it must be
// re-runnable if the blob is written more than once.
func FromFunc(writable func(w io.Writer) error) Blob {
	return funcBlob(writable)
}

// WithDescriptor returns a Blob that streams b's content verbatim but
// reports desc instead of recomputing the digest. Use it when the content's
// identity is already known, e.g. for blobs read back out of a
// content-addressed store.
func WithDescriptor(b Blob, desc Descriptor) Blob {
	return &describedBlob{inner: b, desc: desc}
}

// ToBytes fully consumes b into memory. Intended for small blobs such as
// serialized metadata; layers should stream instead.
func ToBytes(b Blob) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToString fully consumes b into a string.
func ToString(b Blob) (string, error) {
	raw, err := ToBytes(b)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

type funcBlob func(w io.Writer) error

func (f funcBlob) WriteTo(w io.Writer) (Descriptor, error) {
	dw := NewDigestWriter(w)
	if err := f(dw); err != nil {
		return Descriptor{}, err
	}
	return dw.Descriptor(), nil
}

type readerBlob struct {
	mu       sync.Mutex
	r        io.Reader
	consumed bool
}

func (b *readerBlob) WriteTo(w io.Writer) (Descriptor, error) {
	b.mu.Lock()
	if b.consumed {
		b.mu.Unlock()
		return Descriptor{}, ErrConsumed
	}
	b.consumed = true
	b.mu.Unlock()

	dw := NewDigestWriter(w)
	if _, err := io.Copy(dw, b.r); err != nil {
		return Descriptor{}, fmt.Errorf("blob: stream source: %w", err)
	}
	return dw.Descriptor(), nil
}

type describedBlob struct {
	inner Blob
	desc  Descriptor
}

func (b *describedBlob) WriteTo(w io.Writer) (Descriptor, error) {
	if _, err := b.inner.WriteTo(w); err != nil {
		return Descriptor{}, err
	}
	return b.desc, nil
}
