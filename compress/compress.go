// Package compress layers compression onto blob streams.
//
// Writes pick exactly one algorithm (gzip by default, zstd as an
// alternative); reads auto-detect the format from the stream's leading
// bytes, so callers never need to record which compressor produced a
// stored layer.
package compress

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/meigma/kiln/blob"
)

// ErrUnknownFormat is returned when a stream's leading bytes match no
// supported compression format. It signals, in particular, that data
// claimed to be compressed is plain bytes.
var ErrUnknownFormat = errors.New("compress: unknown compression format")

// Algorithm identifies a supported compression format.
type Algorithm uint8

const (
	// Gzip is the default algorithm for newly written layers.
	Gzip Algorithm = iota
	// Zstd selects Zstandard compression.
	Zstd

	// algorithmInvalid is returned on detection failure so the error paths
	// never alias Gzip.
	algorithmInvalid Algorithm = 0xff
)

// String returns the algorithm name.
func (a Algorithm) String() string {
	switch a {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", a)
	}
}

// Magic prefixes used for format detection.
var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// NewWriter returns a writer compressing into w with the given algorithm.
//
// The returned writer must be closed to flush the compressed trailer.
// Gzip compression runs in parallel across blocks.
func NewWriter(w io.Writer, algorithm Algorithm) (io.WriteCloser, error) {
	switch algorithm {
	case Gzip:
		return pgzip.NewWriter(w), nil
	case Zstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("compress: create zstd encoder: %w", err)
		}
		return enc, nil
	default:
		return nil, fmt.Errorf("compress: unsupported algorithm %s", algorithm)
	}
}

// Detect sniffs the compression format of r without consuming it.
//
// The returned reader replays the sniffed bytes and must be used in place
// of r. Streams matching no supported format fail with ErrUnknownFormat;
// on any error the returned algorithm is not a valid Algorithm value.
func Detect(r io.Reader) (Algorithm, io.Reader, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(len(zstdMagic))
	if err != nil && len(header) < len(gzipMagic) {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return algorithmInvalid, br, ErrUnknownFormat
		}
		return algorithmInvalid, br, fmt.Errorf("compress: read stream header: %w", err)
	}
	switch {
	case len(header) >= len(gzipMagic) && header[0] == gzipMagic[0] && header[1] == gzipMagic[1]:
		return Gzip, br, nil
	case len(header) >= len(zstdMagic) &&
		header[0] == zstdMagic[0] && header[1] == zstdMagic[1] &&
		header[2] == zstdMagic[2] && header[3] == zstdMagic[3]:
		return Zstd, br, nil
	default:
		return algorithmInvalid, br, ErrUnknownFormat
	}
}

// NewReader auto-detects the compression format of r and returns a
// decompressing reader. Data that is not actually compressed fails with
// ErrUnknownFormat rather than being passed through.
func NewReader(r io.Reader) (io.ReadCloser, error) {
	algorithm, replay, err := Detect(r)
	if err != nil {
		return nil, err
	}
	switch algorithm {
	case Gzip:
		gr, err := gzip.NewReader(replay)
		if err != nil {
			return nil, fmt.Errorf("compress: open gzip stream: %w", err)
		}
		return gr, nil
	case Zstd:
		dec, err := zstd.NewReader(replay)
		if err != nil {
			return nil, fmt.Errorf("compress: open zstd stream: %w", err)
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, ErrUnknownFormat
	}
}

// Compress wraps b so that writing it produces the compressed stream.
//
// The returned blob's descriptor identifies the compressed bytes; it is
// re-readable whenever b is.
func Compress(b blob.Blob, algorithm Algorithm) blob.Blob {
	return blob.FromFunc(func(w io.Writer) error {
		cw, err := NewWriter(w, algorithm)
		if err != nil {
			return err
		}
		if _, err := b.WriteTo(cw); err != nil {
			cw.Close()
			return err
		}
		return cw.Close()
	})
}
